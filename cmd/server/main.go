package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-token-broker/identity"
	"github.com/jrsteele09/go-token-broker/internal/config"
	"github.com/jrsteele09/go-token-broker/internal/httpclient"
	"github.com/jrsteele09/go-token-broker/internal/logging"
	"github.com/jrsteele09/go-token-broker/provider"
	"github.com/jrsteele09/go-token-broker/resource"
	"github.com/jrsteele09/go-token-broker/server"
	"github.com/jrsteele09/go-token-broker/token"
	"github.com/jrsteele09/go-token-broker/tokenstore"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("error running server")
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := logging.New(c.GetEnv(), c.GetAppName())
	displayAppname(c.GetAppName())

	handler, err := newServer(c, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{Addr: c.GetPort(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go listenAndServe(srv, logger)
	waitForStopSignal()
	return shutdown(srv)
}

func newServer(c config.Config, logger zerolog.Logger) (*server.Server, error) {
	httpClient := httpclient.New(c.GetUpstreamTimeout())

	store := tokenstore.NewClient(c.GetTokenStoreURL(),
		tokenstore.WithAPIKey(c.GetTokenStoreAPIKey()),
		tokenstore.WithHTTPClient(httpClient),
	)
	oauth := provider.New(c,
		provider.WithHTTPClient(httpClient),
		provider.WithRedirectURL(c.GetBaseURL()+server.RouteCallback),
	)

	engine, err := token.NewEngine(store, oauth,
		token.WithLogger(logger),
		token.WithDefaultUserID(c.GetDefaultUserID()),
		token.WithFallbackCapacity(c.GetFallbackCapacity()),
		token.WithExpiryLeeway(c.GetExpiryLeeway()),
	)
	if err != nil {
		return nil, fmt.Errorf("token engine: %w", err)
	}
	if seed := c.GetSeedRefreshToken(); seed != "" {
		if err := engine.Seed(context.Background(), c.GetDefaultUserID(), seed); err != nil {
			return nil, fmt.Errorf("OAUTH_REFRESH_TOKEN needs DEFAULT_USER_ID: %w", err)
		}
		logger.Info().Str("user_id", c.GetDefaultUserID()).Msg("seeded refresh token from environment")
	}

	sessions, err := identity.NewSessions(c.GetSessionSecret(), c.GetMaxSessionAge())
	if err != nil {
		return nil, fmt.Errorf("sessions: %w", err)
	}
	if c.GetSessionSecret() == "" {
		logger.Warn().Msg("SESSION_SECRET not set, sessions will not survive a restart")
	}

	proxy := resource.NewProxy(engine, c.GetAPIBaseURL(),
		resource.WithHTTPClient(httpClient),
		resource.WithLogger(logger),
	)

	return server.New(c, server.Services{
		Tokens:    engine,
		Resources: proxy,
		Login:     oauth,
		Sessions:  sessions,
	}, logger)
}

func listenAndServe(srv *http.Server, logger zerolog.Logger) {
	logger.Info().Str("addr", srv.Addr).Msg("server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("server.ListenAndServe")
		stopSelf()
	}
}

// stopSelf unblocks waitForStopSignal when the listener fails.
func stopSelf() {
	if p, err := os.FindProcess(os.Getpid()); err == nil {
		_ = p.Signal(os.Interrupt)
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
