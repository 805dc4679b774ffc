package provider_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-token-broker/internal/config"
	"github.com/jrsteele09/go-token-broker/internal/errors"
	"github.com/jrsteele09/go-token-broker/provider"
	"github.com/stretchr/testify/require"
)

type providerFixture struct {
	server   *httptest.Server
	client   *provider.Client
	lock     sync.Mutex
	forms    []url.Values
	status   int
	response map[string]any
}

func setupProviderFixture(t *testing.T) *providerFixture {
	t.Helper()
	f := &providerFixture{status: http.StatusOK}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		f.lock.Lock()
		f.forms = append(f.forms, r.PostForm)
		status, response := f.status, f.response
		f.lock.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(response)
	}))
	t.Cleanup(f.server.Close)

	f.client = provider.New(config.OAuth{
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		AuthURL:      f.server.URL + "/oauth/authorize",
		TokenURL:     f.server.URL + "/oauth/token",
		Scopes:       []string{"read", "activity:read_all"},
	}, provider.WithRedirectURL("https://broker.example.com/callback"))
	return f
}

func (f *providerFixture) respond(status int, response map[string]any) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.status, f.response = status, response
}

func (f *providerFixture) lastForm(t *testing.T) url.Values {
	t.Helper()
	f.lock.Lock()
	defer f.lock.Unlock()
	require.NotEmpty(t, f.forms)
	return f.forms[len(f.forms)-1]
}

func TestExchange(t *testing.T) {
	f := setupProviderFixture(t)
	f.respond(http.StatusOK, map[string]any{
		"token_type":    "Bearer",
		"access_token":  "a1",
		"refresh_token": "r1",
		"expires_at":    1_700_021_600,
		"expires_in":    21600,
		"athlete":       map[string]any{"id": 134815, "username": "marianne"},
	})

	record, err := f.client.Exchange(context.Background(), "code-1")
	require.NoError(t, err)
	require.Equal(t, "134815", record.UserID)
	require.Equal(t, "a1", record.AccessToken)
	require.Equal(t, "r1", record.RefreshToken)
	require.Equal(t, int64(1_700_021_600), record.ExpiresAt)

	form := f.lastForm(t)
	require.Equal(t, "authorization_code", form.Get("grant_type"))
	require.Equal(t, "code-1", form.Get("code"))
	require.Equal(t, "client-1", form.Get("client_id"))
	require.Equal(t, "secret-1", form.Get("client_secret"))
}

func TestRefresh(t *testing.T) {
	f := setupProviderFixture(t)
	f.respond(http.StatusOK, map[string]any{
		"access_token":  "a2",
		"refresh_token": "r2",
		"expires_at":    1_700_021_600,
	})

	record, err := f.client.Refresh(context.Background(), "r1")
	require.NoError(t, err)
	require.Empty(t, record.UserID)
	require.Equal(t, "a2", record.AccessToken)
	require.Equal(t, "r2", record.RefreshToken)
	require.Equal(t, int64(1_700_021_600), record.ExpiresAt)

	form := f.lastForm(t)
	require.Equal(t, "refresh_token", form.Get("grant_type"))
	require.Equal(t, "r1", form.Get("refresh_token"))
	require.Equal(t, "client-1", form.Get("client_id"))
	require.Equal(t, "secret-1", form.Get("client_secret"))
}

func TestRefreshExpiresAtMilliseconds(t *testing.T) {
	f := setupProviderFixture(t)
	f.respond(http.StatusOK, map[string]any{
		"access_token":  "a2",
		"refresh_token": "r2",
		"expires_at":    int64(1_700_021_600_000),
	})

	record, err := f.client.Refresh(context.Background(), "r1")
	require.NoError(t, err)
	require.Equal(t, int64(1_700_021_600), record.ExpiresAt)
}

func TestRefreshExpiresInOnly(t *testing.T) {
	f := setupProviderFixture(t)
	f.respond(http.StatusOK, map[string]any{
		"access_token":  "a2",
		"refresh_token": "r2",
		"expires_in":    3600,
	})

	before := time.Now().Unix()
	record, err := f.client.Refresh(context.Background(), "r1")
	require.NoError(t, err)
	require.GreaterOrEqual(t, record.ExpiresAt, before+3600)
	require.LessOrEqual(t, record.ExpiresAt, time.Now().Unix()+3600)
}

func TestRefreshWithoutExpiry(t *testing.T) {
	f := setupProviderFixture(t)
	f.respond(http.StatusOK, map[string]any{"access_token": "a2", "refresh_token": "r2"})

	_, err := f.client.Refresh(context.Background(), "r1")
	require.ErrorIs(t, err, errors.ErrUpstreamUnavailable)
	require.ErrorContains(t, err, "no expiry")
}

func TestRefreshRejected(t *testing.T) {
	f := setupProviderFixture(t)
	f.respond(http.StatusBadRequest, map[string]any{
		"error":             "invalid_grant",
		"error_description": "refresh token revoked",
	})

	_, err := f.client.Refresh(context.Background(), "r1")
	require.ErrorIs(t, err, errors.ErrInvalidGrant)
	require.ErrorContains(t, err, "status 400")
	require.ErrorContains(t, err, "refresh token revoked")
	require.NotContains(t, err.Error(), "secret-1")
}

func TestRefreshProviderDown(t *testing.T) {
	f := setupProviderFixture(t)
	f.respond(http.StatusServiceUnavailable, map[string]any{"message": "down for maintenance"})

	_, err := f.client.Refresh(context.Background(), "r1")
	require.ErrorIs(t, err, errors.ErrUpstreamUnavailable)
	require.ErrorContains(t, err, "status 503")
}

func TestRefreshStatusClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    map[string]any
		wantErr error
		notErr  error
	}{
		{"unauthorized client", http.StatusUnauthorized, map[string]any{"error": "invalid_client"}, errors.ErrInvalidGrant, errors.ErrUpstreamUnavailable},
		{"forbidden", http.StatusForbidden, map[string]any{"message": "Authorization Error"}, errors.ErrInvalidGrant, errors.ErrUpstreamUnavailable},
		{"rate limited", http.StatusTooManyRequests, map[string]any{"message": "Rate Limit Exceeded"}, errors.ErrUpstreamUnavailable, errors.ErrInvalidGrant},
		{"request timeout", http.StatusRequestTimeout, map[string]any{"message": "timeout"}, errors.ErrUpstreamUnavailable, errors.ErrInvalidGrant},
		{"not found", http.StatusNotFound, map[string]any{"message": "Not Found"}, errors.ErrUpstreamUnavailable, errors.ErrInvalidGrant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupProviderFixture(t)
			f.respond(tt.status, tt.body)

			_, err := f.client.Refresh(context.Background(), "r1")
			require.ErrorIs(t, err, tt.wantErr)
			require.False(t, errors.Is(err, tt.notErr))
			require.ErrorContains(t, err, fmt.Sprintf("status %d", tt.status))
		})
	}
}

func TestRefreshUnreachable(t *testing.T) {
	f := setupProviderFixture(t)
	f.server.Close()

	_, err := f.client.Refresh(context.Background(), "r1")
	require.ErrorIs(t, err, errors.ErrUpstreamUnavailable)
}

func TestRefreshEmptyToken(t *testing.T) {
	f := setupProviderFixture(t)

	_, err := f.client.Refresh(context.Background(), " ")
	require.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestAuthCodeURL(t *testing.T) {
	f := setupProviderFixture(t)

	u, err := url.Parse(f.client.AuthCodeURL("state-1"))
	require.NoError(t, err)
	require.Equal(t, "/oauth/authorize", u.Path)

	q := u.Query()
	require.Equal(t, "client-1", q.Get("client_id"))
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "https://broker.example.com/callback", q.Get("redirect_uri"))
	require.Equal(t, "read,activity:read_all", q.Get("scope"))
	require.Equal(t, "auto", q.Get("approval_prompt"))
	require.Equal(t, "state-1", q.Get("state"))
	require.Empty(t, q.Get("client_secret"))
}
