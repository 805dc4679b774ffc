package config

// TokenStoreConfig is read by the token store service binary
type TokenStoreConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetDSN() string
	GetSealKey() string
	GetAPIKey() string
}

type TokenStore struct {
	Port        string `env:"TOKENSTORE_PORT" envDefault:"8081"`
	AppName     string `env:"TOKENSTORE_APP_NAME" envDefault:"Token Store"`
	Environment string `env:"ENV" envDefault:"DEV"`
	DSN         string `env:"TOKENSTORE_DSN" envDefault:"sqlite://./data/tokens.db"`
	SealKey     string `env:"TOKENSTORE_SEAL_KEY"`
	APIKey      string `env:"TOKENSTORE_API_KEY"`
}

var _ TokenStoreConfig = TokenStore{}

// NewTokenStore parses the token store configuration from environment variables.
func NewTokenStore() (TokenStoreConfig, error) {
	var c TokenStore
	if err := ParseEnv(&c); err != nil {
		return nil, err
	}
	return c, nil
}

func (t TokenStore) GetPort() string {
	return listenAddr(t.Port)
}

func (t TokenStore) GetAppName() string {
	return t.AppName
}

func (t TokenStore) GetEnv() string {
	if t.Environment == "" {
		return "DEV"
	}
	return t.Environment
}

// GetDSN selects the backend: memory://, sqlite://<path> or postgres://...
func (t TokenStore) GetDSN() string {
	return t.DSN
}

// GetSealKey is a passphrase used to seal token columns at rest. Empty disables sealing.
func (t TokenStore) GetSealKey() string {
	return t.SealKey
}

func (t TokenStore) GetAPIKey() string {
	return t.APIKey
}
