package errors_test

import (
	"io"
	"testing"

	"github.com/jrsteele09/go-token-broker/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestWrapfNil(t *testing.T) {
	require.NoError(t, errors.Wrapf(nil, "context %d", 1))
}

func TestWrapfKeepsChain(t *testing.T) {
	err := errors.Wrapf(io.EOF, "reading %s", "body")
	require.EqualError(t, err, "reading body: EOF")
	require.True(t, errors.Is(err, io.EOF))
}

func TestKindfMatchesKindAndCause(t *testing.T) {
	err := errors.Kindf(errors.ErrRefreshFailed, errors.ErrUpstreamUnavailable, "user %s", "42")
	require.True(t, errors.Is(err, errors.ErrRefreshFailed))
	require.True(t, errors.Is(err, errors.ErrUpstreamUnavailable))
	require.EqualError(t, err, "refresh failed: user 42: upstream unavailable")
}

func TestKindfWithoutCause(t *testing.T) {
	err := errors.Kindf(errors.ErrInvalidInput, nil, "user id is required")
	require.True(t, errors.Is(err, errors.ErrInvalidInput))
	require.EqualError(t, err, "invalid input: user id is required")
}
