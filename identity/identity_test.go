package identity_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-token-broker/identity"
	"github.com/jrsteele09/go-token-broker/internal/errors"
	"github.com/stretchr/testify/require"
)

var sessionNow = time.Unix(1_700_000_000, 0)

func setupSessions(t *testing.T, now *time.Time) *identity.Sessions {
	t.Helper()
	sessions, err := identity.NewSessions("test-secret", time.Hour,
		identity.WithSessionNowTime(func() time.Time { return *now }))
	require.NoError(t, err)
	return sessions
}

func requestWithSession(t *testing.T, sessions *identity.Sessions, userID string) *http.Request {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, sessions.Issue(rec, httptest.NewRequest(http.MethodGet, "/callback", nil), userID))

	r := httptest.NewRequest(http.MethodGet, "/api/athlete", nil)
	for _, c := range rec.Result().Cookies() {
		r.AddCookie(c)
	}
	return r
}

func TestSessionRoundTrip(t *testing.T) {
	now := sessionNow
	sessions := setupSessions(t, &now)

	userID, err := sessions.UserID(requestWithSession(t, sessions, "42"))
	require.NoError(t, err)
	require.Equal(t, "42", userID)
}

func TestSessionCookieAttributes(t *testing.T) {
	now := sessionNow
	sessions := setupSessions(t, &now)

	r := httptest.NewRequest(http.MethodGet, "/callback", nil)
	r.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	require.NoError(t, sessions.Issue(rec, r, "42"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, identity.SessionCookieName, cookies[0].Name)
	require.True(t, cookies[0].HttpOnly)
	require.True(t, cookies[0].Secure)
	require.Equal(t, 3600, cookies[0].MaxAge)
}

func TestSessionExpired(t *testing.T) {
	now := sessionNow
	sessions := setupSessions(t, &now)
	r := requestWithSession(t, sessions, "42")

	now = now.Add(2 * time.Hour)
	_, err := sessions.UserID(r)
	require.ErrorIs(t, err, errors.ErrNoIdentity)
}

func TestSessionForged(t *testing.T) {
	now := sessionNow
	sessions := setupSessions(t, &now)
	other, err := identity.NewSessions("other-secret", time.Hour,
		identity.WithSessionNowTime(func() time.Time { return now }))
	require.NoError(t, err)

	_, err = sessions.UserID(requestWithSession(t, other, "42"))
	require.ErrorIs(t, err, errors.ErrNoIdentity)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: identity.SessionCookieName, Value: "not-a-jwt"})
	_, err = sessions.UserID(r)
	require.ErrorIs(t, err, errors.ErrNoIdentity)
}

func TestSessionMissing(t *testing.T) {
	now := sessionNow
	sessions := setupSessions(t, &now)

	_, err := sessions.UserID(httptest.NewRequest(http.MethodGet, "/", nil))
	require.ErrorIs(t, err, errors.ErrNoIdentity)
}

func TestSessionClear(t *testing.T) {
	now := sessionNow
	sessions := setupSessions(t, &now)
	rec := httptest.NewRecorder()

	sessions.Clear(rec, httptest.NewRequest(http.MethodGet, "/logout", nil))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, -1, cookies[0].MaxAge)
}

func TestRandomSecretSessions(t *testing.T) {
	first, err := identity.NewSessions("", 0)
	require.NoError(t, err)
	second, err := identity.NewSessions("", 0)
	require.NoError(t, err)

	r := requestWithSession(t, first, "42")
	userID, err := first.UserID(r)
	require.NoError(t, err)
	require.Equal(t, "42", userID)

	_, err = second.UserID(r)
	require.ErrorIs(t, err, errors.ErrNoIdentity)
}

func TestFixed(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	userID, err := identity.Fixed("42").ResolveUserID(r)
	require.NoError(t, err)
	require.Equal(t, "42", userID)

	_, err = identity.Fixed(" ").ResolveUserID(r)
	require.ErrorIs(t, err, errors.ErrNoIdentity)
}

func TestPathValue(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/users/42/athlete", nil)
	_, err := identity.PathValue(identity.PathUserID).ResolveUserID(r)
	require.ErrorIs(t, err, errors.ErrNoIdentity)

	r.SetPathValue(identity.PathUserID, "42")
	userID, err := identity.PathValue(identity.PathUserID).ResolveUserID(r)
	require.NoError(t, err)
	require.Equal(t, "42", userID)
}

func TestChain(t *testing.T) {
	now := sessionNow
	sessions := setupSessions(t, &now)
	chain := identity.Chain(identity.SessionCookie(sessions), identity.Fixed("default"))

	userID, err := chain.ResolveUserID(requestWithSession(t, sessions, "42"))
	require.NoError(t, err)
	require.Equal(t, "42", userID)

	userID, err = chain.ResolveUserID(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.Equal(t, "default", userID)

	_, err = identity.Chain(identity.SessionCookie(sessions)).ResolveUserID(httptest.NewRequest(http.MethodGet, "/", nil))
	require.ErrorIs(t, err, errors.ErrNoIdentity)
}

func TestChainStopsOnFailure(t *testing.T) {
	failing := identity.ResolverFunc(func(*http.Request) (string, error) {
		return "", errors.ErrUpstreamUnavailable
	})
	chain := identity.Chain(failing, identity.Fixed("default"))

	_, err := chain.ResolveUserID(httptest.NewRequest(http.MethodGet, "/", nil))
	require.ErrorIs(t, err, errors.ErrUpstreamUnavailable)
}

func TestFromStrategies(t *testing.T) {
	now := sessionNow
	sessions := setupSessions(t, &now)

	resolver, err := identity.FromStrategies([]string{"path", "session", "fixed"}, sessions, "default")
	require.NoError(t, err)

	r := requestWithSession(t, sessions, "42")
	r.SetPathValue(identity.PathUserID, "7")
	userID, err := resolver.ResolveUserID(r)
	require.NoError(t, err)
	require.Equal(t, "7", userID)

	_, err = identity.FromStrategies([]string{"header"}, sessions, "")
	require.ErrorContains(t, err, "unknown user strategy")

	_, err = identity.FromStrategies(nil, sessions, "")
	require.Error(t, err)

	_, err = identity.FromStrategies([]string{"session"}, nil, "")
	require.Error(t, err)
}

func TestHasStrategy(t *testing.T) {
	require.True(t, identity.HasStrategy([]string{"session", " Path "}, identity.StrategyPath))
	require.False(t, identity.HasStrategy([]string{"session"}, identity.StrategyPath))
}
