package config

import "time"

type SessionConfig interface {
	GetSessionSecret() string
	GetMaxSessionAge() time.Duration
	GetUserStrategies() []string
}

type Session struct {
	Secret     string        `env:"SESSION_SECRET"`
	MaxAge     time.Duration `env:"SESSION_MAX_AGE" envDefault:"720h"`
	Strategies []string      `env:"USER_STRATEGIES" envSeparator:"," envDefault:"session,fixed"`
}

var _ SessionConfig = Session{}

// GetSessionSecret signs session cookies. Empty means a random key per process.
func (s Session) GetSessionSecret() string {
	return s.Secret
}

func (s Session) GetMaxSessionAge() time.Duration {
	return s.MaxAge
}

// GetUserStrategies lists, in order, how a request is mapped to a user id:
// "session" (signed cookie), "path" (/api/users/{userID}/...), "fixed" (DEFAULT_USER_ID).
func (s Session) GetUserStrategies() []string {
	return s.Strategies
}
