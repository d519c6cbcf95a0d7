package hap

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/AlexxIT/go2hap/pkg/hap/ed25519"
	"github.com/google/uuid"
)

const (
	TXTConfigNumber = "c#" // Current configuration number (ex. 1, 2, 3)
	TXTDeviceID     = "id" // Device ID of the accessory (ex. 77:75:87:A0:7D:F4)
	TXTModel        = "md" // Model name of the accessory (ex. MJCTD02YL)
	TXTProtoVersion = "pv" // Protocol version string (ex. 1.1)
	TXTStateNumber  = "s#" // Current state number (ex. 1)
	TXTCategory     = "ci" // Accessory Category Identifier (ex. 2, 5, 17)
	TXTSetupHash    = "sh" // Setup hash (ex. Y9w9hQ==)

	// TXTFeatureFlags
	//  - 0001b - Supports Apple Authentication Coprocessor
	//  - 0010b - Supports Software Authentication
	TXTFeatureFlags = "ff" // Pairing Feature flags (ex. 0, 1, 2)

	// TXTStatusFlags
	//  - 0001b - Accessory has not been paired with any controllers
	//  - 0100b - A problem has been detected on the accessory
	TXTStatusFlags = "sf" // Status flags (ex. 0, 1)

	StatusNotPaired = "1"
	StatusPaired    = "0"
)

const (
	StateM1 = 1
	StateM2 = 2
	StateM3 = 3
	StateM4 = 4
	StateM5 = 5
	StateM6 = 6

	MethodPair          = 0
	MethodPairMFi       = 1 // if device has MFI cert
	MethodVerifyPair    = 2
	MethodAddPairing    = 3
	MethodDeletePairing = 4
	MethodListPairings  = 5
)

const (
	PermissionUser  = 0
	PermissionAdmin = 1
)

// TLV8 types of pairing messages
const (
	TagMethod        = 0x00
	TagIdentifier    = 0x01
	TagSalt          = 0x02
	TagPublicKey     = 0x03
	TagProof         = 0x04
	TagEncryptedData = 0x05
	TagState         = 0x06
	TagError         = 0x07
	TagRetryDelay    = 0x08
	TagCertificate   = 0x09
	TagSignature     = 0x0A
	TagPermissions   = 0x0B
	TagFragmentData  = 0x0C
	TagFragmentLast  = 0x0D
	TagFlags         = 0x13
	TagSeparator     = 0xFF
)

const (
	MaxPairings     = 16
	MaxIdentifier   = 64
	SetupUsername   = "Pair-Setup"
	MaxAuthAttempts = 100
)

func GenerateKey() []byte {
	return ed25519.GenerateKey()
}

// GenerateID makes a stable device ID (XX:XX:XX:XX:XX:XX) from any name
func GenerateID(name string) string {
	sum := sha512.Sum512([]byte(name))
	return fmt.Sprintf(
		"%02X:%02X:%02X:%02X:%02X:%02X",
		sum[0], sum[1], sum[2], sum[3], sum[4], sum[5],
	)
}

// GenerateUUID makes a controller ID in the same format as iOS
func GenerateUUID() string {
	return strings.ToUpper(uuid.NewString())
}

func Append(items ...any) (b []byte) {
	for _, item := range items {
		switch v := item.(type) {
		case string:
			b = append(b, v...)
		case []byte:
			b = append(b, v[:]...)
		default:
			panic(v)
		}
	}
	return
}

func DecodeKey(s string) []byte {
	if s == "" {
		return nil
	}
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return data
}
