package ed25519

import (
	"crypto/ed25519"
	"errors"
)

const (
	PublicKeySize  = ed25519.PublicKeySize
	PrivateKeySize = ed25519.PrivateKeySize
)

var ErrInvalidParams = errors.New("ed25519: invalid params")

func GenerateKey() []byte {
	_, key, _ := ed25519.GenerateKey(nil)
	return key
}

// PublicKey returns the public half of a 64 byte private key
func PublicKey(key []byte) []byte {
	if len(key) != PrivateKeySize {
		return nil
	}
	return key[32:]
}

func ValidateSignature(key, data, signature []byte) bool {
	if len(key) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}

	return ed25519.Verify(key, data, signature)
}

func Signature(key, data []byte) ([]byte, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, ErrInvalidParams
	}

	return ed25519.Sign(key, data), nil
}
