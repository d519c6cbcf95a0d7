package yaml

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPatch(t *testing.T) {
	b := []byte(`# prefix`)

	b, err := Patch(b, "pin", "031-45-154", "homekit")
	require.Nil(t, err)

	require.Equal(t, `# prefix
homekit:
  pin: 031-45-154
`, string(b))

	b, err = Patch(b, "pairings", []string{"client_id=1", "client_id=2"}, "homekit")
	require.Nil(t, err)

	require.Equal(t, `# prefix
homekit:
  pin: 031-45-154
  pairings:
    - client_id=1
    - client_id=2
`, string(b))

	b, err = Patch(b, "pairings", []string{"client_id=3"}, "homekit")
	require.Nil(t, err)

	require.Equal(t, `# prefix
homekit:
  pin: 031-45-154
  pairings:
    - client_id=3
`, string(b))

	b, err = Patch(b, "pin", "123-45-678", "homekit")
	require.Nil(t, err)

	require.Equal(t, `# prefix
homekit:
  pin: 123-45-678
  pairings:
    - client_id=3
`, string(b))

	b, err = Patch(b, "pairings", nil, "homekit")
	require.Nil(t, err)

	require.Equal(t, `# prefix
homekit:
  pin: 123-45-678
`, string(b))

	// remove missing key
	b2, err := Patch(b, "setup_id", nil, "homekit", "other")
	require.Nil(t, err)
	require.Equal(t, b, b2)
}

func TestPatchEmptySection(t *testing.T) {
	b := []byte(`log:
  level: debug
homekit:
`)

	b, err := Patch(b, "pairings", []string{"client_id=1"}, "homekit")
	require.Nil(t, err)

	require.Equal(t, `log:
  level: debug
homekit:
  pairings:
    - client_id=1
`, string(b))
}

func TestPatchMissingSection(t *testing.T) {
	b := []byte(`log:
  level: debug # comment`)

	b, err := Patch(b, "setup_id", "ABCD", "homekit")
	require.Nil(t, err)

	require.Equal(t, `log:
  level: debug # comment
homekit:
  setup_id: ABCD
`, string(b))
}
