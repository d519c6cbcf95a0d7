package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseConfString(t *testing.T) {
	require.Equal(t, "{homekit: {pin: 031-45-154}}", string(parseConfString("homekit.pin=031-45-154")))
	require.Nil(t, parseConfString("go2hap.yaml"))
	require.Nil(t, parseConfString("pin=031-45-154"))
}

func TestConfig(t *testing.T) {
	prevPath, prevConfigs := ConfigPath, configs
	t.Cleanup(func() {
		ConfigPath, configs = prevPath, prevConfigs
	})

	t.Setenv("GO2HAP_PIN", "031-45-154")

	path := filepath.Join(t.TempDir(), "go2hap.yaml")
	require.Nil(t, os.WriteFile(path, []byte("homekit:\n  name: test\n  pin: ${GO2HAP_PIN}\n"), 0644))

	ConfigPath, configs = "", nil
	initConfig(flagConfig{path, "homekit.model=test-model", `{"log":{"level":"trace"}}`})
	require.Equal(t, path, ConfigPath)

	var cfg struct {
		Mod struct {
			Name  string `yaml:"name"`
			Pin   string `yaml:"pin"`
			Model string `yaml:"model"`
		} `yaml:"homekit"`
		Log map[string]string `yaml:"log"`
	}
	LoadConfig(&cfg)

	require.Equal(t, "test", cfg.Mod.Name)
	require.Equal(t, "031-45-154", cfg.Mod.Pin)
	require.Equal(t, "test-model", cfg.Mod.Model)
	require.Equal(t, "trace", cfg.Log["level"])

	require.Nil(t, PatchConfig("pairings", []string{"client_id=1"}, "homekit"))

	b, err := os.ReadFile(path)
	require.Nil(t, err)
	require.Equal(t, "homekit:\n  name: test\n  pin: ${GO2HAP_PIN}\n  pairings:\n    - client_id=1\n", string(b))
}

func TestPatchConfigDisabled(t *testing.T) {
	prevPath := ConfigPath
	t.Cleanup(func() {
		ConfigPath = prevPath
	})

	ConfigPath = ""
	require.EqualError(t, PatchConfig("pin", "031-45-154", "homekit"), "config file disabled")
}
