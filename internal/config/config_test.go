package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFrom_Defaults(t *testing.T) {
	config, err := LoadFrom([]string{filepath.Join(t.TempDir(), "missing.yaml")}, env(nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultServer, config.Server)
	assert.Equal(t, DefaultListen, config.Listen)
	assert.Equal(t, DefaultWaitPort, config.WaitPort)
	assert.Equal(t, DefaultPollInterval, config.PollInterval)
	assert.Equal(t, DefaultTimeout, config.Timeout)
	assert.Empty(t, config.Path)
}

func TestLoadFrom_FirstFileWins(t *testing.T) {
	first := writeFile(t, "server: http://wpt.local\nkey: abc\npollInterval: 2s\nreporter: tap\n")
	second := writeFile(t, "server: http://other.local\n")

	config, err := LoadFrom([]string{first, second}, env(nil))
	require.NoError(t, err)
	assert.Equal(t, "http://wpt.local", config.Server)
	assert.Equal(t, "abc", config.APIKey)
	assert.Equal(t, 2*time.Second, config.PollInterval)
	assert.Equal(t, "tap", config.Reporter)
	assert.Equal(t, DefaultListen, config.Listen)
	assert.Equal(t, first, config.Path)
}

func TestLoadFrom_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "server: http://wpt.local\nkey: abc\n")

	config, err := LoadFrom([]string{path}, env(map[string]string{
		EnvServer: "http://env.local",
		EnvAPIKey: "xyz",
		EnvDebug:  "true",
		EnvListen: "localhost:9000",
	}))
	require.NoError(t, err)
	assert.Equal(t, "http://env.local", config.Server)
	assert.Equal(t, "xyz", config.APIKey)
	assert.True(t, config.Debug)
	assert.Equal(t, "localhost:9000", config.Listen)
}

func TestLoadFrom_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
	}{
		{name: "malformed yaml", content: "server: [\n"},
		{name: "empty server", content: "server: \"\"\n"},
		{name: "wait port out of range", content: "waitPort: 70000\n"},
		{name: "invalid debug", content: "key: a\n", env: map[string]string{EnvDebug: "maybe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom([]string{writeFile(t, tt.content)}, env(tt.env))
			assert.Error(t, err)
		})
	}
}
