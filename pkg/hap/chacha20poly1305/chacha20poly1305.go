package chacha20poly1305

import (
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	KeySize   = chacha20poly1305.KeySize
	NonceSize = 8 // the high part of the 96 bit nonce, low 4 bytes are always zero
	Overhead  = chacha20poly1305.Overhead
)

var (
	ErrInvalidParams  = errors.New("chacha20poly1305: invalid params")
	ErrAuthentication = errors.New("chacha20poly1305: message authentication failed")
)

// Decrypt opens a handshake message sealed with an 8 byte label, like "PV-Msg02"
func Decrypt(key32 []byte, nonce8 string, ciphertext []byte) ([]byte, error) {
	return DecryptAndVerify(key32, nil, []byte(nonce8), ciphertext, nil)
}

// Encrypt seals a handshake message with an 8 byte label, like "PV-Msg03"
func Encrypt(key32 []byte, nonce8 string, plaintext []byte) ([]byte, error) {
	return EncryptAndSeal(key32, nil, []byte(nonce8), plaintext, nil)
}

func DecryptAndVerify(key32, dst, nonce8, ciphertext, verify []byte) ([]byte, error) {
	if len(key32) != KeySize || len(nonce8) != NonceSize {
		return nil, ErrInvalidParams
	}

	aead, err := chacha20poly1305.New(key32)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, chacha20poly1305.NonceSize)
	copy(nonce[4:], nonce8)

	if dst, err = aead.Open(dst, nonce, ciphertext, verify); err != nil {
		return nil, ErrAuthentication
	}

	return dst, nil
}

func EncryptAndSeal(key32, dst, nonce8, plaintext, verify []byte) ([]byte, error) {
	if len(key32) != KeySize || len(nonce8) != NonceSize {
		return nil, ErrInvalidParams
	}

	aead, err := chacha20poly1305.New(key32)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, chacha20poly1305.NonceSize)
	copy(nonce[4:], nonce8)

	return aead.Seal(dst, nonce, plaintext, verify), nil
}
