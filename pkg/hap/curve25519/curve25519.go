package curve25519

import (
	"crypto/rand"

	"golang.org/x/crypto/curve25519"
)

func GenerateKeyPair() ([]byte, []byte) {
	privateKey := make([]byte, curve25519.ScalarSize)
	_, _ = rand.Read(privateKey)
	publicKey, _ := curve25519.X25519(privateKey, curve25519.Basepoint)
	return publicKey, privateKey
}

// SharedSecret fails for low order points, X25519 returns all zero for them
func SharedSecret(privateKey, otherPublicKey []byte) ([]byte, error) {
	return curve25519.X25519(privateKey, otherPublicKey)
}
