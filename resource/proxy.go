// Package resource relays read-only calls to the provider's resource API.
package resource

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-token-broker/internal/errors"
	"github.com/jrsteele09/go-token-broker/internal/httpclient"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MaxBodyBytes caps relayed response bodies.
const MaxBodyBytes = 10 << 20

// relayedHeaders are upstream headers passed back to the caller.
var relayedHeaders = []string{"X-Ratelimit-Limit", "X-Ratelimit-Usage"}

// TokenSource hands out valid access tokens; *token.Engine satisfies it.
type TokenSource interface {
	GetValidToken(ctx context.Context, userID string) (string, error)
}

// Response is an upstream reply relayed verbatim.
type Response struct {
	StatusCode  int
	ContentType string
	Header      http.Header
	Body        []byte
}

// Proxy calls the resource API on behalf of a user.
type Proxy struct {
	tokens     TokenSource
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// Option configures a Proxy.
type Option func(*Proxy)

// WithHTTPClient replaces the default bounded-timeout client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Proxy) {
		if c != nil {
			p.httpClient = c
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(p *Proxy) {
		p.log = logger
	}
}

// NewProxy relays to baseURL with tokens from the given source.
func NewProxy(tokens TokenSource, baseURL string, opts ...Option) *Proxy {
	p := &Proxy{
		tokens:     tokens,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpclient.New(httpclient.DefaultTimeout),
		log:        log.Logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Fetch calls GET {baseURL}{path}?{query} as userID. An upstream 401 becomes
// errors.ErrSessionExpired; every other status is returned as is.
func (p *Proxy) Fetch(ctx context.Context, userID, path string, query url.Values) (*Response, error) {
	accessToken, err := p.tokens.GetValidToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	target := p.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "build resource request %s", path)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, errors.Kindf(errors.ErrUpstreamUnavailable, err, "resource %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, MaxBodyBytes))
		p.log.Info().Str("user_id", userID).Str("path", path).Msg("resource api rejected access token")
		return nil, errors.Kindf(errors.ErrSessionExpired, nil, "resource %s", path)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes+1))
	if err != nil {
		return nil, errors.Kindf(errors.ErrUpstreamUnavailable, err, "read resource %s", path)
	}
	if len(body) > MaxBodyBytes {
		return nil, errors.Kindf(errors.ErrUpstreamUnavailable, nil, "resource %s: response exceeds %d bytes", path, MaxBodyBytes)
	}

	header := make(http.Header)
	for _, name := range relayedHeaders {
		if v := resp.Header.Get(name); v != "" {
			header.Set(name, v)
		}
	}
	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Header:      header,
		Body:        body,
	}, nil
}
