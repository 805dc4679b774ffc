package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-token-broker/internal/config"
	"github.com/jrsteele09/go-token-broker/internal/logging"
	"github.com/jrsteele09/go-token-broker/internal/metrics"
	"github.com/jrsteele09/go-token-broker/tokenstore"
	tokenfakerepo "github.com/jrsteele09/go-token-broker/tokenstore/repofake"
	"github.com/jrsteele09/go-token-broker/tokenstore/sqlrepo"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const memoryDSN = "memory://"

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("error running token store")
	}
	log.Info().Msg("token store stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.NewTokenStore()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := logging.New(c.GetEnv(), c.GetAppName())
	displayAppname(c.GetAppName())

	repo, closeRepo, err := openRepo(c, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeRepo(); err != nil {
			logger.Error().Err(err).Msg("failed to close token store")
		}
	}()

	if c.GetAPIKey() == "" {
		logger.Warn().Msg("TOKENSTORE_API_KEY not set, the store accepts unauthenticated requests")
	}

	mux := http.NewServeMux()
	mux.Handle("/", tokenstore.NewHandler(repo, c.GetAPIKey(), logger))
	mux.Handle("GET /healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	mux.Handle("GET /metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              c.GetPort(),
		Handler:           otelhttp.NewHandler(mux, c.GetAppName()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go listenAndServe(srv, logger)
	waitForStopSignal()
	return shutdown(srv)
}

func openRepo(c config.TokenStoreConfig, logger zerolog.Logger) (tokenstore.Repo, func() error, error) {
	dsn := c.GetDSN()
	if strings.EqualFold(dsn, memoryDSN) {
		logger.Warn().Msg("using in-memory token store, records are lost on restart")
		return tokenfakerepo.NewFakeTokenRepo(), func() error { return nil }, nil
	}

	opts := []sqlrepo.Option{sqlrepo.WithLogger(logger)}
	if key := c.GetSealKey(); key != "" {
		sealer, err := sqlrepo.NewSealer(key)
		if err != nil {
			return nil, nil, fmt.Errorf("seal key: %w", err)
		}
		opts = append(opts, sqlrepo.WithSealer(sealer))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	repo, err := sqlrepo.Open(ctx, dsn, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("open token store: %w", err)
	}
	return repo, repo.Close, nil
}

func listenAndServe(srv *http.Server, logger zerolog.Logger) {
	logger.Info().Str("addr", srv.Addr).Msg("token store listening")
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
