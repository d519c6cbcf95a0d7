package chacha20poly1305

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSeal(t *testing.T) {
	key := bytes.Repeat([]byte{7}, KeySize)
	plaintext := []byte("hello homekit")

	b, err := Encrypt(key, "PS-Msg05", plaintext)
	require.Nil(t, err)
	require.Len(t, b, len(plaintext)+Overhead)

	b2, err := Decrypt(key, "PS-Msg05", b)
	require.Nil(t, err)
	require.Equal(t, plaintext, b2)

	// the label is part of the nonce
	_, err = Decrypt(key, "PS-Msg06", b)
	require.ErrorIs(t, err, ErrAuthentication)
}

func TestTampering(t *testing.T) {
	key := bytes.Repeat([]byte{1}, KeySize)
	nonce := []byte{1, 0, 0, 0, 0, 0, 0, 0}
	aad := []byte{13, 0}

	b, err := EncryptAndSeal(key, nil, nonce, []byte("hello homekit"), aad)
	require.Nil(t, err)

	for i := 0; i < len(b)*8; i++ {
		b2 := append([]byte{}, b...)
		b2[i/8] ^= 1 << (i % 8)

		_, err = DecryptAndVerify(key, nil, nonce, b2, aad)
		require.ErrorIs(t, err, ErrAuthentication)
	}

	_, err = DecryptAndVerify(key, nil, nonce, b, []byte{14, 0})
	require.ErrorIs(t, err, ErrAuthentication)
}

func TestInvalidParams(t *testing.T) {
	_, err := Encrypt([]byte{1, 2, 3}, "PV-Msg02", nil)
	require.ErrorIs(t, err, ErrInvalidParams)

	_, err = Encrypt(make([]byte, KeySize), "PV-Msg", nil)
	require.ErrorIs(t, err, ErrInvalidParams)
}
