package setup

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatAlphaNum(t *testing.T) {
	value := int64(999)
	n := 5
	s1 := strings.ToUpper(fmt.Sprintf("%0"+strconv.Itoa(n)+"s", strconv.FormatInt(value, 36)))
	s2 := FormatInt36(value, n)
	require.Equal(t, s1, s2)
}

func TestSetupCode(t *testing.T) {
	require.Equal(t, "123-45-678", FormatSetupCode("12345678"))
	require.Equal(t, "031-45-154", FormatSetupCode("031-45-154"))
	require.Equal(t, "", FormatSetupCode("1234567"))
	require.Equal(t, "", FormatSetupCode("1234567a"))

	require.Nil(t, ValidateSetupCode("031-45-154"))
	require.ErrorIs(t, ValidateSetupCode("123-45-678"), ErrWrongSetupCode)
	require.ErrorIs(t, ValidateSetupCode("11111111"), ErrWrongSetupCode)
	require.ErrorIs(t, ValidateSetupCode(""), ErrWrongSetupCode)

	for i := 0; i < 100; i++ {
		code := GenerateSetupCode()
		require.Len(t, code, 10)
		require.Nil(t, ValidateSetupCode(code))
	}
}

func TestSetupID(t *testing.T) {
	id := GenerateSetupID()
	require.Len(t, id, 4)
	for _, c := range id {
		require.Contains(t, digits, string(c))
	}
}

func TestSetupURI(t *testing.T) {
	require.Equal(t, "X-HM://00145Q53IABCD", GenerateSetupURI("1", "123-45-678", "ABCD"))
	require.Equal(t, "rxqrlA==", SetupHash("ABCD", "AA:BB:CC:DD:EE:FF"))
}
