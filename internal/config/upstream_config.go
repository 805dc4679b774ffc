package config

import "time"

type UpstreamConfig interface {
	GetAPIBaseURL() string
	GetTokenStoreURL() string
	GetTokenStoreAPIKey() string
	GetUpstreamTimeout() time.Duration
}

type Upstream struct {
	APIBaseURL       string        `env:"API_BASE_URL" envDefault:"https://www.strava.com/api/v3"`
	TokenStoreURL    string        `env:"TOKEN_STORE_URL" envDefault:"http://localhost:8081"`
	TokenStoreAPIKey string        `env:"TOKEN_STORE_API_KEY"`
	Timeout          time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"10s"`
}

var _ UpstreamConfig = Upstream{}

func (u Upstream) GetAPIBaseURL() string {
	return u.APIBaseURL
}

func (u Upstream) GetTokenStoreURL() string {
	return u.TokenStoreURL
}

func (u Upstream) GetTokenStoreAPIKey() string {
	return u.TokenStoreAPIKey
}

// GetUpstreamTimeout bounds every call to the token store, the provider and the resource API.
func (u Upstream) GetUpstreamTimeout() time.Duration {
	if u.Timeout <= 0 {
		return 10 * time.Second
	}
	return u.Timeout
}
