package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is everything the broker service reads from its environment
type Config interface {
	EnvConfig
	CorsConfig
	OAuthConfig
	UpstreamConfig
	SessionConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetPostLoginRedirect() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	OAuth
	Upstream
	Session
}

// New parses the broker configuration from environment variables.
func New() (Config, error) {
	var c mainConfig
	if err := ParseEnv(&c); err != nil {
		return nil, err
	}
	return c, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
