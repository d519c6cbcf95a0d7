package hap

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected   = errors.New("hap: not connected")
	ErrWrongSignature = errors.New("hap: wrong signature")
	ErrWrongProof     = errors.New("hap: wrong server proof")
	ErrWrongDevice    = errors.New("hap: wrong device ID")
	ErrInvalidPairing = errors.New("hap: invalid pairing")
)

// PairingError is the kTLVType_Error value of a pairing response
type PairingError byte

const (
	ErrorUnknown        PairingError = 1
	ErrorAuthentication PairingError = 2
	ErrorBackoff        PairingError = 3
	ErrorMaxPeers       PairingError = 4
	ErrorMaxTries       PairingError = 5
	ErrorUnavailable    PairingError = 6
	ErrorBusy           PairingError = 7
)

// https://github.com/apple/HomeKitADK/blob/fb201f98f5fdc7fef6a455054f08b59cca5d1ec8/HAP/HAPPairing.h#L89
func (e PairingError) Error() string {
	switch e {
	case ErrorUnknown:
		return "hap: generic error to handle unexpected errors"
	case ErrorAuthentication:
		return "hap: setup code or signature verification failed"
	case ErrorBackoff:
		return "hap: client must look at the retry delay TLV item and wait that many seconds before retrying"
	case ErrorMaxPeers:
		return "hap: server cannot accept any more pairings"
	case ErrorMaxTries:
		return "hap: server reached its maximum number of authentication attempts"
	case ErrorUnavailable:
		return "hap: server pairing method is unavailable"
	case ErrorBusy:
		return "hap: server is busy and cannot accept a pairing request at this time"
	}
	return fmt.Sprintf("hap: unknown pairing error %d", byte(e))
}

func newResponseError(req, res any) error {
	return fmt.Errorf("hap: wrong response: %#v, on request: %#v", res, req)
}
