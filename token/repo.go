package token

import "context"

// Store is the durable keeper of token records, keyed by user id.
// Implementations return errors.ErrNotFound for unknown users and
// errors.ErrUpstreamUnavailable when the store cannot be reached.
type Store interface {
	Get(ctx context.Context, userID string) (*Record, error)
	Upsert(ctx context.Context, record *Record) error
	GetRefreshToken(ctx context.Context, userID string) (string, error)
}

// Provider is the OAuth authorization server issuing and rotating token pairs.
// Refresh returns a record without UserID; the provider may rotate the refresh token.
type Provider interface {
	Exchange(ctx context.Context, code string) (*Record, error)
	Refresh(ctx context.Context, refreshToken string) (*Record, error)
}

// RefreshTokenWriter is implemented by stores that accept a refresh token without a full record.
type RefreshTokenWriter interface {
	UpsertRefreshToken(ctx context.Context, userID, refreshToken string) error
}
