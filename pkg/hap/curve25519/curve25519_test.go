package curve25519

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSharedSecret(t *testing.T) {
	public1, private1 := GenerateKeyPair()
	public2, private2 := GenerateKeyPair()
	require.Len(t, public1, 32)
	require.NotEqual(t, public1, public2)

	shared1, err := SharedSecret(private1, public2)
	require.Nil(t, err)

	shared2, err := SharedSecret(private2, public1)
	require.Nil(t, err)

	require.Equal(t, shared1, shared2)
}

func TestLowOrderPoint(t *testing.T) {
	_, private := GenerateKeyPair()

	_, err := SharedSecret(private, make([]byte, 32))
	require.NotNil(t, err)

	_, err = SharedSecret(private, []byte{1, 2, 3})
	require.NotNil(t, err)
}
