package hkdf

import (
	"crypto/sha512"
	"io"

	"golang.org/x/crypto/hkdf"
)

const KeySize = 32

// Sha512 derives a 32 byte key with protocol salt/info strings
func Sha512(key []byte, salt, info string) ([]byte, error) {
	return Derive(key, []byte(salt), []byte(info), KeySize)
}

func Derive(key, salt, info []byte, size int) ([]byte, error) {
	r := hkdf.New(sha512.New, key, salt, info)

	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	return buf, nil
}
