package setup

import (
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"math/big"
	"strconv"
	"strings"
)

const (
	FlagNFC = 1
	FlagIP  = 2
	FlagBLE = 4
	FlagWAC = 8 // Wireless Accessory Configuration (WAC)/Apples MFi
)

var ErrWrongSetupCode = errors.New("setup: wrong setup code")

// trivial codes are not allowed by HomeKit
var invalidCodes = []string{
	"00000000", "11111111", "22222222", "33333333", "44444444",
	"55555555", "66666666", "77777777", "88888888", "99999999",
	"12345678", "87654321",
}

// FormatSetupCode returns code in XXX-XX-XXX format or empty string
func FormatSetupCode(code string) string {
	code = strings.ReplaceAll(code, "-", "")
	if len(code) != 8 {
		return ""
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return ""
		}
	}
	return code[:3] + "-" + code[3:5] + "-" + code[5:]
}

func ValidateSetupCode(code string) error {
	formatted := FormatSetupCode(code)
	if formatted == "" {
		return ErrWrongSetupCode
	}
	digits := strings.ReplaceAll(formatted, "-", "")
	for _, s := range invalidCodes {
		if digits == s {
			return ErrWrongSetupCode
		}
	}
	return nil
}

func GenerateSetupCode() string {
	for {
		n, err := rand.Int(rand.Reader, big.NewInt(100_000_000))
		if err != nil {
			panic(err)
		}
		code := FormatSetupCode(leftPad(n.String(), 8))
		if ValidateSetupCode(code) == nil {
			return code
		}
	}
}

func GenerateSetupID() string {
	b := make([]byte, 4)
	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			panic(err)
		}
		b[i] = digits[n.Int64()]
	}
	return string(b)
}

// SetupHash is the mDNS "sh" value: first 4 bytes of SHA512(setupID + deviceID)
func SetupHash(setupID, deviceID string) string {
	sum := sha512.Sum512([]byte(setupID + deviceID))
	return base64.StdEncoding.EncodeToString(sum[:4])
}

func GenerateSetupURI(category, pin, setupID string) string {
	c, _ := strconv.Atoi(category)
	p, _ := strconv.Atoi(strings.ReplaceAll(pin, "-", ""))
	payload := int64(c&0xFF)<<31 | int64(FlagIP&0xF)<<27 | int64(p&0x7FFFFFF)
	return "X-HM://" + FormatInt36(payload, 9) + setupID
}

// FormatInt36 equal to strings.ToUpper(fmt.Sprintf("%0"+strconv.Itoa(n)+"s", strconv.FormatInt(value, 36)))
func FormatInt36(value int64, n int) string {
	b := make([]byte, n)
	for i := n - 1; 0 <= i; i-- {
		b[i] = digits[value%36]
		value /= 36
	}
	return string(b)
}

func leftPad(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return strings.Repeat("0", n-len(s)) + s
}

const digits = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
