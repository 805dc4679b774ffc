package sqlrepo_test

import (
	"testing"

	"github.com/jrsteele09/go-token-broker/tokenstore/sqlrepo"
	"github.com/stretchr/testify/require"
)

func TestSealer(t *testing.T) {
	sealer, err := sqlrepo.NewSealer("passphrase")
	require.NoError(t, err)

	first, err := sealer.Seal("r1")
	require.NoError(t, err)
	second, err := sealer.Seal("r1")
	require.NoError(t, err)
	require.NotEqual(t, first, second, "nonces must differ")

	opened, err := sealer.Open(first)
	require.NoError(t, err)
	require.Equal(t, "r1", opened)

	empty, err := sealer.Seal("")
	require.NoError(t, err)
	require.Empty(t, empty)

	plain, err := sealer.Open("legacy-plaintext")
	require.NoError(t, err)
	require.Equal(t, "legacy-plaintext", plain)
}

func TestSealerWrongKey(t *testing.T) {
	sealer, err := sqlrepo.NewSealer("passphrase")
	require.NoError(t, err)
	other, err := sqlrepo.NewSealer("another passphrase")
	require.NoError(t, err)

	sealed, err := sealer.Seal("r1")
	require.NoError(t, err)

	_, err = other.Open(sealed)
	require.ErrorContains(t, err, "failed authentication")

	_, err = sealer.Open("sb1:!!!")
	require.Error(t, err)
	_, err = sealer.Open("sb1:AAAA")
	require.ErrorContains(t, err, "too short")
}

func TestNewSealerRequiresPassphrase(t *testing.T) {
	_, err := sqlrepo.NewSealer("  ")
	require.Error(t, err)
}
