package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/docgen/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docgen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileAndSubstitution(t *testing.T) {
	t.Setenv("DOCGEN_TEST_DSN", "postgres://user:secret@db:5432/docs")

	path := writeConfig(t, `
generator:
  batch_size: 250
  max_depth: 3
  seed: 42
storage:
  driver: pq
  dsn: ${DOCGEN_TEST_DSN}
  timeout: 90s
server:
  address: ":9090"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.Generator.BatchSize)
	assert.Equal(t, 3, cfg.Generator.MaxDepth)
	assert.Equal(t, int64(42), cfg.Generator.Seed)
	assert.Equal(t, "pq", cfg.Storage.Driver)
	assert.Equal(t, "postgres://user:secret@db:5432/docs", cfg.Storage.DSN)
	assert.Equal(t, 90*time.Second, cfg.Storage.Timeout)
	assert.Equal(t, ":9090", cfg.Server.Address)

	// untouched keys keep defaults
	assert.Equal(t, 20, cfg.Generator.Attributes)
	assert.Equal(t, "json_test", cfg.Storage.Table)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("DOCGEN_STORAGE_DRIVER", "sqlite")
	t.Setenv("DOCGEN_GENERATOR_BATCH_SIZE", "7")

	path := writeConfig(t, `
storage:
  driver: mysql
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, 7, cfg.Generator.BatchSize)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))

	_, err = Load(writeConfig(t, "generator: [unterminated"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = Load(writeConfig(t, "generator:\n  batch_size: 0\n"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative attributes", func(c *Config) { c.Generator.Attributes = -1 }},
		{"zero depth", func(c *Config) { c.Generator.MaxDepth = 0 }},
		{"zero min string", func(c *Config) { c.Generator.MinStringLength = 0 }},
		{"max below min", func(c *Config) { c.Generator.MaxStringLength = 10 }},
		{"zero workers", func(c *Config) { c.Generator.Workers = 0 }},
		{"negative records", func(c *Config) { c.Generator.Records = -5 }},
		{"zero batch", func(c *Config) { c.Generator.BatchSize = 0 }},
		{"empty driver", func(c *Config) { c.Storage.Driver = "" }},
		{"table injection", func(c *Config) { c.Storage.Table = "json_test; DROP TABLE x" }},
		{"bad column", func(c *Config) { c.Storage.Column = "1data" }},
		{"bulk mode", func(c *Config) { c.Storage.BulkMode = "stream" }},
		{"max conns", func(c *Config) { c.Storage.MaxConns = 0 }},
		{"negative timeout", func(c *Config) { c.Storage.Timeout = -time.Second }},
		{"negative max records", func(c *Config) { c.Server.MaxRecords = -1 }},
		{"sample rate", func(c *Config) { c.Observability.SampleRate = 1.5 }},
		{"memory interval", func(c *Config) { c.Observability.MemoryInterval = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Generator.Seed = 99
	cfg.Storage.Driver = "file"
	cfg.Storage.Compression = "zstd"

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("DOCGEN_A", "alpha")
	assert.Equal(t, "x=alpha y=", substituteEnvVars("x=${DOCGEN_A} y=${DOCGEN_UNSET_VAR}"))
	assert.Equal(t, "open ${brace", substituteEnvVars("open ${brace"))
}

func TestSubstituteEnvVarsDoesNotExpandValues(t *testing.T) {
	t.Setenv("DOCGEN_SELF", "${DOCGEN_SELF}")
	t.Setenv("DOCGEN_B", "${DOCGEN_A}")
	t.Setenv("DOCGEN_A", "alpha")

	done := make(chan string, 1)
	go func() { done <- substituteEnvVars("dsn: ${DOCGEN_SELF} b=${DOCGEN_B} a=${DOCGEN_A}") }()

	select {
	case got := <-done:
		assert.Equal(t, "dsn: ${DOCGEN_SELF} b=${DOCGEN_A} a=alpha", got)
	case <-time.After(3 * time.Second):
		t.Fatal("substitution did not terminate")
	}
}

func TestValidIdentifier(t *testing.T) {
	assert.True(t, ValidIdentifier("json_test"))
	assert.True(t, ValidIdentifier("_data2"))
	assert.False(t, ValidIdentifier(""))
	assert.False(t, ValidIdentifier("a-b"))
	assert.False(t, ValidIdentifier(`"quoted"`))
}

func TestLoggingConversion(t *testing.T) {
	lc := LoggingConfig{Level: "debug", Encoding: "console", Development: true}.Logger()
	assert.Equal(t, "debug", lc.Level)
	assert.Equal(t, "console", lc.Encoding)
	assert.True(t, lc.Development)
}
