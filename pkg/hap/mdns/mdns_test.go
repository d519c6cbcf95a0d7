package mdns

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTXT(t *testing.T) {
	a := NewAdvertiser(Info{
		Name:      "go2hap",
		DeviceID:  "AA:BB:CC:DD:EE:FF",
		Model:     "go2hap",
		Category:  "1",
		SetupHash: "rxqrlA==",
		Port:      51826,
	})

	txt := a.TXT(false)
	require.Contains(t, txt, "sf=1")
	require.Contains(t, txt, "c#=1")
	require.Contains(t, txt, "id=AA:BB:CC:DD:EE:FF")
	require.Contains(t, txt, "sh=rxqrlA==")

	txt = a.TXT(true)
	require.Contains(t, txt, "sf=0")
	require.NotContains(t, txt, "sf=1")

	require.True(t, HasDeviceID(txt, "aa:bb:cc:dd:ee:ff"))
	require.False(t, HasDeviceID(txt, "AA:BB:CC:DD:EE:00"))
}

func TestCloseWithoutStart(t *testing.T) {
	a := NewAdvertiser(Info{Name: "test"})
	require.Nil(t, a.Close())
}
