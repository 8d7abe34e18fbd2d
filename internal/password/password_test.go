package password

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashVerify(t *testing.T) {
	hash, err := Hash("Sup3rSecret!")
	require.NoError(t, err)
	require.Contains(t, hash, "$argon2id$")

	ok, err := Verify("Sup3rSecret!", hash)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = Verify("wrong-password", hash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHash_DistinctSalts(t *testing.T) {
	first, err := Hash("same-password")
	require.NoError(t, err)
	second, err := Hash("same-password")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestVerify_RejectsMalformedHash(t *testing.T) {
	for _, hash := range []string{"", "plain", "$bcrypt$x$y$z$w", "$argon2id$v=19$m=bad$s$h"} {
		_, err := Verify("password", hash)
		require.Error(t, err, "hash %q", hash)
	}
}
