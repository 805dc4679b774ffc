package identity

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-token-broker/internal/errors"
)

const (
	// SessionCookieName carries the signed user id.
	SessionCookieName = "broker_session"
	sessionIssuer     = "go-token-broker"
)

// Sessions issues and verifies HS256-signed session cookies whose subject is the user id.
// The cookie never contains provider tokens.
type Sessions struct {
	secret  []byte
	maxAge  time.Duration
	nowTime func() time.Time // injectable for testing
}

type SessionOption func(*Sessions)

func WithSessionNowTime(nowFunc func() time.Time) SessionOption {
	return func(s *Sessions) {
		s.nowTime = nowFunc
	}
}

// NewSessions signs with secret. An empty secret generates a random one, so sessions
// do not survive a restart.
func NewSessions(secret string, maxAge time.Duration, opts ...SessionOption) (*Sessions, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
	}
	if maxAge <= 0 {
		maxAge = 30 * 24 * time.Hour
	}
	s := &Sessions{secret: key, maxAge: maxAge, nowTime: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs a session for userID and sets it on the response.
func (s *Sessions) Issue(w http.ResponseWriter, r *http.Request, userID string) error {
	now := s.nowTime()
	claims := jwt.RegisteredClaims{
		Issuer:    sessionIssuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.maxAge)),
		ID:        uuid.New().String(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return fmt.Errorf("failed to sign session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		Secure:   IsSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.maxAge.Seconds()),
	})
	return nil
}

// Clear expires the session cookie.
func (s *Sessions) Clear(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   IsSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// UserID returns the subject of a valid session cookie. Missing, expired or forged
// cookies are ErrNoIdentity.
func (s *Sessions) UserID(r *http.Request) (string, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", errors.Kindf(errors.ErrNoIdentity, nil, "no session cookie")
	}

	var claims jwt.RegisteredClaims
	_, err = jwt.ParseWithClaims(cookie.Value, &claims, s.verificationKey,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.nowTime),
	)
	if err != nil {
		return "", errors.Kindf(errors.ErrNoIdentity, err, "invalid session")
	}
	if claims.Subject == "" {
		return "", errors.Kindf(errors.ErrNoIdentity, nil, "session has no subject")
	}
	return claims.Subject, nil
}

func (s *Sessions) verificationKey(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return s.secret, nil
}

// IsSecure reports whether the request reached us over https, directly or via a proxy.
func IsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return r.Header.Get("X-Forwarded-Proto") == "https"
}
