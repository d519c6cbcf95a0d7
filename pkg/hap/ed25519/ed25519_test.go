package ed25519

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignature(t *testing.T) {
	key := GenerateKey()
	public := PublicKey(key)
	require.Len(t, public, PublicKeySize)

	data := []byte("accessory ephemeral|device id|controller ephemeral")

	sign, err := Signature(key, data)
	require.Nil(t, err)
	require.True(t, ValidateSignature(public, data, sign))

	data[0] ^= 1
	require.False(t, ValidateSignature(public, data, sign))

	require.False(t, ValidateSignature(public[:31], data, sign))
	require.False(t, ValidateSignature(public, data, sign[:63]))

	_, err = Signature(public, data)
	require.ErrorIs(t, err, ErrInvalidParams)
}
