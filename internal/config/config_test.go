package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 0.0, cfg.Envelope.Quant, 1e-12)
	assert.Equal(t, 4, cfg.Envelope.Concurrency)
	assert.False(t, cfg.Envelope.ParallelVariables)
	assert.Equal(t, []string{"", "NA", "NaN", "null"}, cfg.Source.MissingTokens)
	assert.Equal(t, ",", cfg.Source.Delimiter)
	assert.Equal(t, "csv", cfg.Output.Format)
	assert.Equal(t, "table", cfg.Output.BoundsFormat)
	assert.InDelta(t, -9999.0, cfg.Output.GridNoData, 1e-12)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 20.0, cfg.Server.RateLimit, 1e-12)
	assert.Equal(t, 40, cfg.Server.RateBurst)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.NoError(t, cfg.Validate("project"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
envelope:
  quant: 0.05
  concurrency: 8
  parallel_variables: true
source:
  missing_tokens: ["-", "n/a"]
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 0.05, cfg.Envelope.Quant, 1e-12)
	assert.Equal(t, 8, cfg.Envelope.Concurrency)
	assert.True(t, cfg.Envelope.ParallelVariables)
	assert.Equal(t, []string{"-", "n/a"}, cfg.Source.MissingTokens)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, "csv", cfg.Output.Format)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
envelope:
  quant: 0.05
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("SRE_ENVELOPE_QUANT", "0.1")
	t.Setenv("SRE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.InDelta(t, 0.1, cfg.Envelope.Quant, 1e-12)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("SRE_SERVER_PORT", "3000")
	t.Setenv("SRE_OUTPUT_GRID_NODATA", "-1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.InDelta(t, -1.0, cfg.Output.GridNoData, 1e-12)
}

func TestLoadBadFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("envelope: [\n"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Envelope.Concurrency = 4
	cfg.Source.Delimiter = ","
	cfg.Server.Port = 8080
	cfg.Server.RateLimit = 20
	cfg.Server.RateBurst = 40
	return cfg
}

func TestValidateServe_ValidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 9090

	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	// Port is only checked when serving.
	assert.NoError(t, cfg.Validate("fit"))
}

func TestValidateServe_RateLimit(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.RateBurst = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "rate_burst")

	cfg.Server.RateLimit = 0
	assert.NoError(t, cfg.Validate("serve"))

	cfg.Server.RateLimit = -1
	err = cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "rate_limit")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateQuant(t *testing.T) {
	tests := []struct {
		quant float64
		ok    bool
	}{
		{0, true},
		{0.05, true},
		{0.4999, true},
		{0.5, false},
		{-0.01, false},
		{math.NaN(), false},
	}
	for _, tt := range tests {
		cfg := validDefaults()
		cfg.Envelope.Quant = tt.quant
		err := cfg.Validate("fit")
		if tt.ok {
			assert.NoError(t, err, "quant %v", tt.quant)
			continue
		}
		require.Error(t, err, "quant %v", tt.quant)
		assert.Contains(t, err.Error(), "envelope.quant")
	}
}

func TestValidateConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Envelope.Concurrency = 0
	err := cfg.Validate("fit")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "concurrency must be between 1 and 64")

	cfg.Envelope.Concurrency = 65
	err = cfg.Validate("fit")
	assert.Error(t, err)

	cfg.Envelope.Concurrency = 64
	assert.NoError(t, cfg.Validate("fit"))
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := validDefaults()
	cfg.Envelope.Concurrency = 0
	cfg.Envelope.Quant = 0.7
	cfg.Source.Delimiter = ";;"

	err := cfg.Validate("project")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "envelope.quant")
	assert.Contains(t, err.Error(), "envelope.concurrency")
	assert.Contains(t, err.Error(), "source.delimiter")
}

func TestDelimiterRune(t *testing.T) {
	assert.Equal(t, ',', SourceConfig{}.DelimiterRune())
	assert.Equal(t, ';', SourceConfig{Delimiter: ";"}.DelimiterRune())
	assert.Equal(t, '\t', SourceConfig{Delimiter: "\t"}.DelimiterRune())
}
