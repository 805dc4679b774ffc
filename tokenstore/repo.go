// Package tokenstore is the HTTP token store: the client the broker persists through,
// and the service that backs it.
package tokenstore

import (
	"context"

	"github.com/jrsteele09/go-token-broker/internal/errors"
	"github.com/jrsteele09/go-token-broker/internal/utils"
	"github.com/jrsteele09/go-token-broker/token"
)

// Repo is the durable side of the store. Get and GetRefreshToken return errors.ErrNotFound
// for unknown users.
type Repo interface {
	Get(ctx context.Context, userID string) (*token.Record, error)
	Upsert(ctx context.Context, record *token.Record) error
	GetRefreshToken(ctx context.Context, userID string) (string, error)
	Patch(ctx context.Context, patch Patch) error
}

// Patch is a partial record write. Nil fields keep their stored value.
type Patch struct {
	UserID       string  `json:"user_id"`
	RefreshToken string  `json:"refresh_token"`
	AccessToken  *string `json:"access_token,omitempty"`
	ExpiresAt    *int64  `json:"expires_at,omitempty"`
}

func (p Patch) Validate() error {
	switch {
	case p.UserID == "":
		return errors.Kindf(errors.ErrInvalidInput, nil, "user id is required")
	case p.RefreshToken == "":
		return errors.Kindf(errors.ErrInvalidInput, nil, "refresh token is required")
	}
	return nil
}

// Apply merges the patch into current, which may be nil for a new user.
func (p Patch) Apply(current *token.Record) *token.Record {
	merged := token.Record{UserID: p.UserID}
	if current != nil {
		merged = *current
	}
	merged.RefreshToken = p.RefreshToken
	merged.AccessToken = utils.ValueOr(p.AccessToken, merged.AccessToken)
	merged.ExpiresAt = token.NormalizeExpiresAt(utils.ValueOr(p.ExpiresAt, merged.ExpiresAt))
	return &merged
}

// RefreshTokenEntry is the body of GET /refresh-tokens/{userID}.
type RefreshTokenEntry struct {
	UserID       string `json:"user_id"`
	RefreshToken string `json:"refresh_token"`
}
