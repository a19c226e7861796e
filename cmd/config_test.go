package cmd

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "violet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_OverDefaults(t *testing.T) {
	// GIVEN a config setting only input and mode
	path := writeConfig(t, t.TempDir(), "input: /tmp/s2e.log\nmode: keys\n")

	// WHEN loaded
	cfg, err := LoadConfig(path)

	// THEN unset keys keep their defaults
	require.NoError(t, err)
	assert.Equal(t, "/tmp/s2e.log", cfg.Input)
	assert.Equal(t, ModeKeys, cfg.Mode)
	assert.Equal(t, 3, cfg.Context)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfig_UnknownKeyRejected(t *testing.T) {
	// GIVEN a typo in a key
	path := writeConfig(t, t.TempDir(), "input: x\ncontxt: 5\n")

	// WHEN loaded
	_, err := LoadConfig(path)

	// THEN strict parsing fails with a configuration error
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr), "got %v", err)
	assert.Contains(t, err.Error(), "contxt")
}

func TestLoadConfig_ExpandsEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("VIOLET_TEST_RUN", "run42")
	path := writeConfig(t, dir, "input: /data/${VIOLET_TEST_RUN}/s2e.log\n")

	cfg, err := LoadConfig(path)

	require.NoError(t, err)
	assert.Equal(t, "/data/run42/s2e.log", cfg.Input)
}

func TestLoadConfig_DotEnvNextToConfig(t *testing.T) {
	// GIVEN a .env file defining the variable the config references
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("VIOLET_TEST_OUTDIR=/tmp/dumps\n"), 0644))
	path := writeConfig(t, dir, "input: in.log\noutdir: ${VIOLET_TEST_OUTDIR}\n")
	t.Cleanup(func() { os.Unsetenv("VIOLET_TEST_OUTDIR") })

	// WHEN loaded
	cfg, err := LoadConfig(path)

	// THEN the .env value is used
	require.NoError(t, err)
	assert.Equal(t, "/tmp/dumps", cfg.OutDir)
}

func TestLoadConfig_EmptyFileGivesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "")

	cfg, err := LoadConfig(path)

	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))

	var cfgErr *ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestConfig_Validate(t *testing.T) {
	valid := DefaultConfig()
	valid.Input = "in.log"
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing input", func(c *Config) { c.Input = "" }},
		{"unknown mode", func(c *Config) { c.Mode = "lines" }},
		{"negative context", func(c *Config) { c.Context = -1 }},
		{"negative threshold", func(c *Config) { c.LatencyThreshold = -0.5 }},
		{"NaN threshold", func(c *Config) { c.LatencyThreshold = math.NaN() }},
		{"infinite threshold", func(c *Config) { c.LatencyThreshold = math.Inf(1) }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			var cfgErr *ConfigurationError
			assert.True(t, errors.As(cfg.Validate(), &cfgErr))
		})
	}
}
