// Package identity maps an inbound request to the user whose tokens it acts on.
package identity

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-token-broker/internal/errors"
)

// Strategy names accepted by FromStrategies.
const (
	StrategySession = "session"
	StrategyPath    = "path"
	StrategyFixed   = "fixed"
)

// PathUserID is the path wildcard read by the path strategy.
const PathUserID = "userID"

// Resolver returns the user id for a request, or errors.ErrNoIdentity when it cannot tell.
type Resolver interface {
	ResolveUserID(r *http.Request) (string, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(r *http.Request) (string, error)

func (f ResolverFunc) ResolveUserID(r *http.Request) (string, error) {
	return f(r)
}

// Fixed always resolves to userID; an empty id never resolves.
func Fixed(userID string) Resolver {
	userID = strings.TrimSpace(userID)
	return ResolverFunc(func(*http.Request) (string, error) {
		if userID == "" {
			return "", errors.Kindf(errors.ErrNoIdentity, nil, "no default user configured")
		}
		return userID, nil
	})
}

// PathValue reads the user id from a ServeMux wildcard.
func PathValue(name string) Resolver {
	return ResolverFunc(func(r *http.Request) (string, error) {
		userID := strings.TrimSpace(r.PathValue(name))
		if userID == "" {
			return "", errors.Kindf(errors.ErrNoIdentity, nil, "no {%s} in path", name)
		}
		return userID, nil
	})
}

// SessionCookie reads the user id from the signed session cookie.
func SessionCookie(sessions *Sessions) Resolver {
	return ResolverFunc(sessions.UserID)
}

// Chain tries resolvers in order; the first that resolves wins. Errors other than
// ErrNoIdentity stop the chain.
func Chain(resolvers ...Resolver) Resolver {
	return ResolverFunc(func(r *http.Request) (string, error) {
		for _, resolver := range resolvers {
			userID, err := resolver.ResolveUserID(r)
			if err == nil && userID != "" {
				return userID, nil
			}
			if err != nil && !errors.Is(err, errors.ErrNoIdentity) {
				return "", err
			}
		}
		return "", errors.Kindf(errors.ErrNoIdentity, nil, "request does not identify a user")
	})
}

// FromStrategies builds the resolver chain named by USER_STRATEGIES.
func FromStrategies(strategies []string, sessions *Sessions, defaultUserID string) (Resolver, error) {
	resolvers := make([]Resolver, 0, len(strategies))
	for _, name := range strategies {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case StrategySession:
			if sessions == nil {
				return nil, fmt.Errorf("strategy %q needs sessions", name)
			}
			resolvers = append(resolvers, SessionCookie(sessions))
		case StrategyPath:
			resolvers = append(resolvers, PathValue(PathUserID))
		case StrategyFixed:
			resolvers = append(resolvers, Fixed(defaultUserID))
		case "":
		default:
			return nil, fmt.Errorf("unknown user strategy %q", name)
		}
	}
	if len(resolvers) == 0 {
		return nil, fmt.Errorf("no user strategies configured")
	}
	return Chain(resolvers...), nil
}

// HasStrategy reports whether name is among strategies.
func HasStrategy(strategies []string, name string) bool {
	for _, s := range strategies {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return true
		}
	}
	return false
}
