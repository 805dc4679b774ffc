package provider

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/jrsteele09/go-token-broker/internal/errors"
	"github.com/jrsteele09/go-token-broker/token"
	"golang.org/x/oauth2"
)

// Fields the provider adds to the standard token response.
const (
	extraExpiresAt = "expires_at"
	extraAthlete   = "athlete"
	extraUserID    = "user_id"
)

// recordFromToken reads the provider response into a record. expires_at wins over
// expires_in because it does not depend on our clock.
func recordFromToken(tok *oauth2.Token) (*token.Record, error) {
	if tok == nil || tok.AccessToken == "" {
		return nil, errors.Kindf(errors.ErrUpstreamUnavailable, nil, "provider response has no access token")
	}

	expiresAt, ok := toInt64(tok.Extra(extraExpiresAt))
	if !ok && !tok.Expiry.IsZero() {
		expiresAt, ok = tok.Expiry.Unix(), true
	}
	if !ok || expiresAt <= 0 {
		return nil, errors.Kindf(errors.ErrUpstreamUnavailable, nil, "provider response has no expiry")
	}

	record := &token.Record{
		UserID:       userIDFrom(tok),
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    expiresAt,
	}
	record.Normalize()
	return record, nil
}

func userIDFrom(tok *oauth2.Token) string {
	if athlete, ok := tok.Extra(extraAthlete).(map[string]interface{}); ok {
		if id, ok := toInt64(athlete["id"]); ok && id > 0 {
			return strconv.FormatInt(id, 10)
		}
		if id, ok := athlete["id"].(string); ok {
			return strings.TrimSpace(id)
		}
	}
	switch v := tok.Extra(extraUserID).(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		if id, ok := toInt64(v); ok {
			return strconv.FormatInt(id, 10)
		}
	}
	return ""
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	}
	return 0, false
}
