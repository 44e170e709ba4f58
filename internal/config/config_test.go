package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestDefault_IsValidInMemory(t *testing.T) {
	cfg := Default()
	cfg.UseMemory = true
	assert.NoError(t, cfg.Validate())
}

func TestDefault_RequiresDSNs(t *testing.T) {
	err := Default().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DSNs are required")
}

func TestFromLookup_Overrides(t *testing.T) {
	cfg, err := fromLookup(lookupFrom(map[string]string{
		EnvUseMemory:           "true",
		EnvMaxDistanceKm:       "250",
		EnvZScoreThreshold:     "2.5",
		EnvPeriodDays:          "14",
		EnvRegionalAdjustments: "NYC=1.2, LA=0.9",
		EnvLogFormat:           "json",
		EnvShutdownTimeout:     "3s",
		EnvPostgresMaxConns:    "8",
	}))
	require.NoError(t, err)

	assert.True(t, cfg.UseMemory)
	assert.Equal(t, 250.0, cfg.Proximity.MaxDistanceKm)
	assert.Equal(t, 2.5, cfg.Variance.ZScoreThreshold)
	assert.Equal(t, 14, cfg.Benchmark.PeriodDays)
	assert.Equal(t, map[string]float64{"NYC": 1.2, "LA": 0.9}, cfg.Variance.RegionalAdjustments)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "3s", cfg.ShutdownTimeout.String())
	assert.Equal(t, 8, cfg.PostgresMaxConns)
	assert.NoError(t, cfg.Validate())
}

func TestFromLookup_CollectsErrors(t *testing.T) {
	_, err := fromLookup(lookupFrom(map[string]string{
		EnvMaxDistanceKm:       "far",
		EnvMinSampleSize:       "three",
		EnvRegionalAdjustments: "NYC",
	}))
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, EnvMaxDistanceKm)
	assert.Contains(t, msg, EnvMinSampleSize)
	assert.Contains(t, msg, EnvRegionalAdjustments)
}

func TestValidate_RejectsBadEngineParameters(t *testing.T) {
	cfg := Default()
	cfg.UseMemory = true
	cfg.Proximity.MaxDistanceKm = 0
	cfg.Benchmark.MinSampleSize = 0
	cfg.Variance.ZScoreThreshold = -1
	cfg.LogFormat = "xml"
	cfg.PostgresMaxConns = -1

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"proximity", "benchmark", "variance", "log format", "max conns"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoadDotEnv(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("PRICEPOINT_TEST_DOTENV=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("PRICEPOINT_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("PRICEPOINT_TEST_DOTENV"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("warn", "json", &buf)
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	assert.False(t, strings.Contains(buf.String(), "hidden"))
	assert.True(t, strings.Contains(buf.String(), `"level":"warn"`))
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())

	assert.Equal(t, zerolog.InfoLevel, NewLogger("loud", "json", &buf).GetLevel())
}
