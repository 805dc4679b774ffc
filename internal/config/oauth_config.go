package config

import "time"

type OAuthConfig interface {
	GetClientID() string
	GetClientSecret() string
	GetAuthURL() string
	GetTokenURL() string
	GetRedirectURL() string
	GetScopes() []string
	GetDefaultUserID() string
	GetFallbackCapacity() int
	GetExpiryLeeway() time.Duration
	GetSeedRefreshToken() string
}

type OAuth struct {
	ClientID         string        `env:"OAUTH_CLIENT_ID"`
	ClientSecret     string        `env:"OAUTH_CLIENT_SECRET"`
	AuthURL          string        `env:"OAUTH_AUTH_URL" envDefault:"https://www.strava.com/oauth/authorize"`
	TokenURL         string        `env:"OAUTH_TOKEN_URL" envDefault:"https://www.strava.com/oauth/token"`
	RedirectURL      string        `env:"OAUTH_REDIRECT_URL"`
	Scopes           []string      `env:"OAUTH_SCOPES" envSeparator:"," envDefault:"read,activity:read_all,profile:read_all"`
	DefaultUserID    string        `env:"DEFAULT_USER_ID"`
	FallbackCapacity int           `env:"FALLBACK_CAPACITY" envDefault:"128"`
	ExpiryLeeway     time.Duration `env:"EXPIRY_LEEWAY" envDefault:"0s"`
	SeedRefreshToken string        `env:"OAUTH_REFRESH_TOKEN"`
}

var _ OAuthConfig = OAuth{}

func (o OAuth) GetClientID() string {
	return o.ClientID
}

func (o OAuth) GetClientSecret() string {
	return o.ClientSecret
}

func (o OAuth) GetAuthURL() string {
	return o.AuthURL
}

func (o OAuth) GetTokenURL() string {
	return o.TokenURL
}

// GetRedirectURL is the provider callback; empty means BASE_URL + /callback.
func (o OAuth) GetRedirectURL() string {
	return o.RedirectURL
}

func (o OAuth) GetScopes() []string {
	return o.Scopes
}

// GetDefaultUserID enables single-user mode when set.
func (o OAuth) GetDefaultUserID() string {
	return o.DefaultUserID
}

func (o OAuth) GetFallbackCapacity() int {
	return o.FallbackCapacity
}

func (o OAuth) GetExpiryLeeway() time.Duration {
	return o.ExpiryLeeway
}

// GetSeedRefreshToken is a refresh token issued out of band for DEFAULT_USER_ID.
func (o OAuth) GetSeedRefreshToken() string {
	return o.SeedRefreshToken
}
