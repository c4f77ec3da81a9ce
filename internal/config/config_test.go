package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 9600, cfg.Serial.BaudRate)
	assert.Equal(t, 4*time.Second, cfg.Serial.HandshakeTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Serial.ResetPulse)
	assert.Equal(t, 2*time.Second, cfg.Serial.SettleDelay)
	assert.Equal(t, 55001, cfg.Network.DiscoveryPort)
	assert.Equal(t, 55000, cfg.Network.StreamPort)
	assert.Equal(t, 5*time.Second, cfg.Network.ConnectTimeout)
	assert.Equal(t, 20*time.Second, cfg.Discovery.AutoTimeout)
	assert.Equal(t, 30*time.Second, cfg.Discovery.ManualTimeout)
	assert.Equal(t, "experiment_data", cfg.Recording.DefaultBaseName)
	assert.Equal(t, 999, cfg.Recording.MaxSuffix)
	assert.Equal(t, "sqlite", cfg.Catalog.Driver)
	assert.NotEmpty(t, cfg.Serial.PortPatterns)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
discovery:
  auto_on_start: false
  manual_timeout: 45s
recording:
  output_dir: /data/sessions
catalog:
  enabled: false
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.GetServerAddr())
	assert.False(t, cfg.Discovery.AutoOnStart)
	assert.Equal(t, 45*time.Second, cfg.Discovery.ManualTimeout)
	assert.Equal(t, 20*time.Second, cfg.Discovery.AutoTimeout)
	assert.Equal(t, "/data/sessions", cfg.Recording.OutputDir)
	assert.False(t, cfg.Catalog.Enabled)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "network:\n  stream_port: 56000\n")
	t.Setenv("VRDS_NETWORK_STREAM_PORT", "57000")
	t.Setenv("VRDS_LOGGING_LEVEL", "debug")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 57000, cfg.Network.StreamPort)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFileValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad log level", "logging:\n  level: loud\n", "logging.level"},
		{"stream port out of range", "network:\n  stream_port: 70000\n", "network.stream_port"},
		{"zero discovery timeout", "discovery:\n  auto_timeout: 0s\n", "discovery timeouts"},
		{"pattern without index", "serial:\n  port_patterns: [\"/dev/ttyACM\"]\n", "serial.port_patterns"},
		{"inverted index range", "serial:\n  first_index: 5\n  last_index: 2\n", "serial.last_index"},
		{"unknown catalog driver", "catalog:\n  driver: mysql\n", "catalog.driver"},
		{"no suffix budget", "recording:\n  max_suffix: 0\n", "recording.max_suffix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDefaultPortSpace(t *testing.T) {
	first, last, patterns := defaultPortSpace("windows")
	assert.Equal(t, 1, first)
	assert.Equal(t, 40, last)
	assert.Equal(t, []string{`\\.\COM%d`}, patterns)

	_, _, patterns = defaultPortSpace("linux")
	assert.Contains(t, patterns, "/dev/ttyACM%d")
}
