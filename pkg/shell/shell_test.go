package shell

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReplaceEnvVars(t *testing.T) {
	t.Setenv("HOMEKIT_PIN", "031-45-154")

	s := ReplaceEnvVars("pin: ${HOMEKIT_PIN}\nname: ${HOMEKIT_NAME:go2hap}\nid: ${HOMEKIT_ID}")
	require.Equal(t, "pin: 031-45-154\nname: go2hap\nid: ${HOMEKIT_ID}", s)

	// empty default
	require.Equal(t, "listen: ", ReplaceEnvVars("listen: ${HOMEKIT_LISTEN:}"))
}
