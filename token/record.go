package token

import (
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/go-token-broker/internal/errors"
)

// millisecondThreshold is 5138-11-16 in Unix seconds; anything above it is a millisecond timestamp.
const millisecondThreshold = 100_000_000_000

// Record is the token triple held for one user.
// ExpiresAt is an absolute Unix timestamp in seconds.
type Record struct {
	UserID       string `json:"user_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// NormalizeExpiresAt converts a millisecond timestamp to seconds and leaves seconds untouched.
func NormalizeExpiresAt(v int64) int64 {
	if v > millisecondThreshold {
		return v / 1000
	}
	return v
}

// Normalize trims identifiers and forces ExpiresAt into seconds.
func (r *Record) Normalize() {
	r.UserID = strings.TrimSpace(r.UserID)
	r.AccessToken = strings.TrimSpace(r.AccessToken)
	r.RefreshToken = strings.TrimSpace(r.RefreshToken)
	r.ExpiresAt = NormalizeExpiresAt(r.ExpiresAt)
}

// Validate checks the fields a persisted record must carry.
func (r *Record) Validate() error {
	switch {
	case r == nil:
		return errors.Kindf(errors.ErrInvalidInput, nil, "token record is required")
	case strings.TrimSpace(r.UserID) == "":
		return errors.Kindf(errors.ErrInvalidInput, nil, "user id is required")
	case strings.TrimSpace(r.AccessToken) == "":
		return errors.Kindf(errors.ErrInvalidInput, nil, "access token is required")
	case r.ExpiresAt <= 0:
		return errors.Kindf(errors.ErrInvalidInput, nil, "expires_at is required")
	}
	return nil
}

// ValidAt reports whether the access token may still be used at now.
// A token is never valid at or after its expiry second.
func (r *Record) ValidAt(now time.Time) bool {
	if r == nil || r.AccessToken == "" {
		return false
	}
	return now.Unix() < NormalizeExpiresAt(r.ExpiresAt)
}

// Expiry returns ExpiresAt as a time.
func (r *Record) Expiry() time.Time {
	return time.Unix(NormalizeExpiresAt(r.ExpiresAt), 0)
}

// String never prints credential values.
func (r Record) String() string {
	return fmt.Sprintf("token.Record{user_id=%q expires_at=%d access_token=%s refresh_token=%s}",
		r.UserID, r.ExpiresAt, redact(r.AccessToken), redact(r.RefreshToken))
}

func redact(s string) string {
	if s == "" {
		return "<empty>"
	}
	return "<redacted>"
}
