package hkdf

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDerive(t *testing.T) {
	// RFC 5869 A.1 keying material with SHA-512
	ikm, _ := hex.DecodeString("0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b")
	salt, _ := hex.DecodeString("000102030405060708090a0b0c")
	info, _ := hex.DecodeString("f0f1f2f3f4f5f6f7f8f9")

	okm, err := Derive(ikm, salt, info, 42)
	require.Nil(t, err)
	require.Equal(t, "832390086cda71fb47625bb5ceb168e4c8e26a1a16ed34d9fc7fe92c1481579338da362cb8d9f925d7cb", hex.EncodeToString(okm))
}

func TestSha512(t *testing.T) {
	shared := []byte("shared secret")

	read, err := Sha512(shared, "Control-Salt", "Control-Read-Encryption-Key")
	require.Nil(t, err)
	require.Len(t, read, KeySize)

	write, err := Sha512(shared, "Control-Salt", "Control-Write-Encryption-Key")
	require.Nil(t, err)
	require.NotEqual(t, read, write)

	again, err := Derive(shared, []byte("Control-Salt"), []byte("Control-Read-Encryption-Key"), KeySize)
	require.Nil(t, err)
	require.Equal(t, read, again)
}
