package errors

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the token broker
var (
	// Caller errors
	ErrInvalidInput = errors.New("invalid input")
	ErrNoIdentity   = errors.New("no user identity")

	// Credential lifecycle errors
	ErrNoCredentials       = errors.New("no credentials")
	ErrRefreshFailed       = errors.New("refresh failed")
	ErrAuthorizationFailed = errors.New("authorization failed")
	ErrInvalidGrant        = errors.New("invalid grant")
	ErrSessionExpired      = errors.New("session expired")

	// Collaborator errors
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Kindf returns an error matching both kind and cause, e.g. Kindf(ErrRefreshFailed, err, "user %s", id)
func Kindf(kind, cause error, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if cause == nil {
		return fmt.Errorf("%w: %s", kind, msg)
	}
	return fmt.Errorf("%w: %s: %w", kind, msg, cause)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New, re-exported so callers only import this package
func New(text string) error {
	return errors.New(text)
}
