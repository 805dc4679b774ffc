package token

import (
	"context"
	"strings"
	"time"

	"github.com/jrsteele09/go-token-broker/internal/errors"
	"github.com/jrsteele09/go-token-broker/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	defaultFallbackCapacity = 128
	defaultRefreshTimeout   = 30 * time.Second
	defaultPersistTimeout   = 10 * time.Second

	forcedFlightSuffix = "#force"
)

// Engine hands out valid access tokens, refreshing and persisting them through the
// store when they expire. It holds no per-user token state other than the bounded
// refresh-token fallback.
type Engine struct {
	store    Store
	provider Provider
	fallback *fallback
	flights  singleflight.Group

	coalesce       bool
	leeway         time.Duration
	refreshTimeout time.Duration
	defaultUserID  string
	nowTime        func() time.Time // injectable for testing
	log            zerolog.Logger
}

// EngineOption defines a function type to modify the Engine instance.
type EngineOption func(*Engine)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) EngineOption {
	return func(e *Engine) {
		e.nowTime = nowFunc
	}
}

// WithLogger sets the logger; the global zerolog logger is used otherwise.
func WithLogger(logger zerolog.Logger) EngineOption {
	return func(e *Engine) {
		e.log = logger
	}
}

// WithFallbackCapacity bounds how many users' refresh tokens are kept in process. 0 disables it.
func WithFallbackCapacity(capacity int) EngineOption {
	return func(e *Engine) {
		e.fallback = newFallback(capacity)
	}
}

// WithRefreshCoalescing toggles per-user collapsing of concurrent refreshes (on by default).
func WithRefreshCoalescing(enabled bool) EngineOption {
	return func(e *Engine) {
		e.coalesce = enabled
	}
}

// WithDefaultUserID is used when the provider's code exchange does not identify the user.
func WithDefaultUserID(userID string) EngineOption {
	return func(e *Engine) {
		e.defaultUserID = strings.TrimSpace(userID)
	}
}

// WithExpiryLeeway treats tokens as expired this long before their expires_at.
func WithExpiryLeeway(leeway time.Duration) EngineOption {
	return func(e *Engine) {
		if leeway > 0 {
			e.leeway = leeway
		}
	}
}

// WithRefreshTimeout bounds a whole refresh (store read, provider exchange, store write).
func WithRefreshTimeout(timeout time.Duration) EngineOption {
	return func(e *Engine) {
		if timeout > 0 {
			e.refreshTimeout = timeout
		}
	}
}

// NewEngine creates a token lifecycle engine over a store and a provider.
func NewEngine(store Store, provider Provider, opts ...EngineOption) (*Engine, error) {
	if store == nil || provider == nil {
		return nil, errors.New("token engine requires a store and a provider")
	}
	e := &Engine{
		store:          store,
		provider:       provider,
		fallback:       newFallback(defaultFallbackCapacity),
		coalesce:       true,
		refreshTimeout: defaultRefreshTimeout,
		nowTime:        time.Now,
		log:            log.Logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// GetValidToken returns an access token for userID that has not expired at the moment of the check.
func (e *Engine) GetValidToken(ctx context.Context, userID string) (string, error) {
	record, err := e.GetValidRecord(ctx, userID)
	if err != nil {
		return "", err
	}
	return record.AccessToken, nil
}

// GetValidRecord is GetValidToken returning the whole record.
func (e *Engine) GetValidRecord(ctx context.Context, userID string) (*Record, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.Kindf(errors.ErrInvalidInput, nil, "user id is required")
	}

	record, err := e.store.Get(ctx, userID)
	switch {
	case err == nil:
		if e.valid(record) {
			metrics.TokenCacheHits.Inc()
			return record, nil
		}
		e.log.Debug().Str("user_id", userID).Int64("expires_at", record.ExpiresAt).Msg("access token expired")
	case errors.Is(err, errors.ErrNotFound):
		e.log.Debug().Str("user_id", userID).Msg("no token record in store")
	default:
		metrics.StoreLookupFailures.Inc()
		e.log.Warn().Err(err).Str("user_id", userID).Msg("token store lookup failed")
	}

	return e.refresh(ctx, userID, false)
}

// Refresh exchanges the user's refresh token for a new pair regardless of the current expiry.
func (e *Engine) Refresh(ctx context.Context, userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.Kindf(errors.ErrInvalidInput, nil, "user id is required")
	}
	record, err := e.refresh(ctx, userID, true)
	if err != nil {
		return "", err
	}
	return record.AccessToken, nil
}

// Authorize exchanges an authorization code and persists the resulting record. Not retried.
func (e *Engine) Authorize(ctx context.Context, code string) (*Record, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errors.Kindf(errors.ErrInvalidInput, nil, "authorization code is required")
	}

	record, err := e.provider.Exchange(ctx, code)
	if err != nil {
		metrics.TokenAuthorizations.WithLabelValues(metrics.ResultFailure).Inc()
		return nil, errors.Kindf(errors.ErrAuthorizationFailed, err, "code exchange")
	}
	record.Normalize()
	if record.UserID == "" {
		record.UserID = e.defaultUserID
	}
	if record.UserID == "" {
		metrics.TokenAuthorizations.WithLabelValues(metrics.ResultFailure).Inc()
		return nil, errors.Kindf(errors.ErrAuthorizationFailed, nil, "provider response does not identify the user")
	}
	if err := record.Validate(); err != nil {
		metrics.TokenAuthorizations.WithLabelValues(metrics.ResultFailure).Inc()
		return nil, errors.Kindf(errors.ErrAuthorizationFailed, err, "provider response")
	}
	metrics.TokenAuthorizations.WithLabelValues(metrics.ResultSuccess).Inc()

	e.fallback.remember(record.UserID, record.RefreshToken)
	e.persist(ctx, record)
	e.log.Info().Str("user_id", record.UserID).Int64("expires_at", record.ExpiresAt).Msg("user authorized")
	return record, nil
}

// Seed registers a refresh token obtained outside the authorization flow, e.g. from
// configuration. It is kept in process and written to stores that accept bare refresh tokens.
func (e *Engine) Seed(ctx context.Context, userID, refreshToken string) error {
	userID = strings.TrimSpace(userID)
	refreshToken = strings.TrimSpace(refreshToken)
	if userID == "" || refreshToken == "" {
		return errors.Kindf(errors.ErrInvalidInput, nil, "user id and refresh token are required")
	}
	e.fallback.remember(userID, refreshToken)

	writer, ok := e.store.(RefreshTokenWriter)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultPersistTimeout)
	defer cancel()
	if err := writer.UpsertRefreshToken(ctx, userID, refreshToken); err != nil {
		metrics.StoreWriteFailures.Inc()
		e.log.Warn().Err(err).Str("user_id", userID).Msg("failed to store seeded refresh token")
	}
	return nil
}

func (e *Engine) refresh(ctx context.Context, userID string, force bool) (*Record, error) {
	if !e.coalesce {
		return e.doRefresh(ctx, userID, force)
	}

	// A forced refresh must not be satisfied by a flight that may return the current record.
	key := userID
	if force {
		key += forcedFlightSuffix
	}

	// The shared refresh must not die with whichever caller started it.
	results := e.flights.DoChan(key, func() (interface{}, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.refreshTimeout)
		defer cancel()
		return e.doRefresh(flightCtx, userID, force)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Record), nil
	}
}

func (e *Engine) doRefresh(ctx context.Context, userID string, force bool) (*Record, error) {
	refreshToken, current, err := e.refreshTokenFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	// Another caller may have refreshed between our lookup and this flight.
	if !force && e.valid(current) {
		return current, nil
	}

	record, err := e.provider.Refresh(ctx, refreshToken)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues(metrics.ResultFailure).Inc()
		if errors.Is(err, errors.ErrInvalidGrant) {
			e.fallback.forget(userID, refreshToken)
		}
		e.log.Warn().Err(err).Str("user_id", userID).Msg("token refresh rejected")
		return nil, errors.Kindf(errors.ErrRefreshFailed, err, "user %s", userID)
	}

	record.UserID = userID
	if strings.TrimSpace(record.RefreshToken) == "" {
		record.RefreshToken = refreshToken
	}
	record.Normalize()

	// The old refresh token may already be rotated out, so the new pair is kept either way.
	e.fallback.remember(userID, record.RefreshToken)
	e.persist(ctx, record)

	if !record.ValidAt(e.nowTime()) {
		metrics.TokenRefreshes.WithLabelValues(metrics.ResultFailure).Inc()
		e.log.Warn().Str("user_id", userID).Int64("expires_at", record.ExpiresAt).Msg("provider returned an expired access token")
		return nil, errors.Kindf(errors.ErrRefreshFailed, nil, "provider returned an expired token for user %s", userID)
	}
	metrics.TokenRefreshes.WithLabelValues(metrics.ResultSuccess).Inc()
	e.log.Debug().Str("user_id", userID).Int64("expires_at", record.ExpiresAt).Msg("access token refreshed")
	return record, nil
}

// refreshTokenFor finds the freshest refresh token: the store's record, the store's
// refresh-token entry, then the in-process fallback. The record is re-read inside the
// flight because a flight that finished since the caller's lookup has rotated it.
func (e *Engine) refreshTokenFor(ctx context.Context, userID string) (string, *Record, error) {
	current, err := e.store.Get(ctx, userID)
	if err == nil && current.RefreshToken != "" {
		return current.RefreshToken, current, nil
	}
	if err != nil {
		current = nil
	}

	refreshToken, err := e.store.GetRefreshToken(ctx, userID)
	if err == nil && refreshToken != "" {
		return refreshToken, current, nil
	}
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		e.log.Warn().Err(err).Str("user_id", userID).Msg("token store refresh-token lookup failed")
	}

	if refreshToken, ok := e.fallback.get(userID); ok {
		e.log.Info().Str("user_id", userID).Msg("using in-process refresh token")
		return refreshToken, current, nil
	}
	return "", nil, errors.Kindf(errors.ErrNoCredentials, nil, "no refresh token for user %s", userID)
}

// persist writes the record; failures are logged and counted but never fail the caller.
func (e *Engine) persist(ctx context.Context, record *Record) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultPersistTimeout)
	defer cancel()
	if err := e.store.Upsert(ctx, record); err != nil {
		metrics.StoreWriteFailures.Inc()
		e.log.Error().Err(err).Str("user_id", record.UserID).Msg("failed to persist token record")
	}
}

func (e *Engine) valid(record *Record) bool {
	return record.ValidAt(e.nowTime().Add(e.leeway))
}
