package config

import "strings"

type EnvVars struct {
	Port              string `env:"PORT" envDefault:"8080"`
	AppName           string `env:"APP_NAME" envDefault:"Token Broker"`
	Environment       string `env:"ENV" envDefault:"DEV"`
	BaseURL           string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	PostLoginRedirect string `env:"POST_LOGIN_REDIRECT"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	return listenAddr(e.Port)
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	if e.Environment == "" {
		return "DEV"
	}
	return e.Environment
}

// GetBaseURL returns the externally visible URL of the broker (e.g., "https://broker.example.com").
// The OAuth redirect URI defaults to this base plus /callback.
func (e EnvVars) GetBaseURL() string {
	return strings.TrimRight(e.BaseURL, "/")
}

// GetPostLoginRedirect is where the browser goes after a successful callback.
// Empty means the callback answers with JSON instead.
func (e EnvVars) GetPostLoginRedirect() string {
	return e.PostLoginRedirect
}

func listenAddr(port string) string {
	if port == "" {
		port = "8080"
	}
	if strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}
