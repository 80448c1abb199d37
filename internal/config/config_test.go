package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// Load treats an empty value as unset, so this pins the defaults even
	// when the host environment has these set.
	for _, key := range []string{
		"REDSCOPE_API_URL",
		"REDSCOPE_API_TIMEOUT",
		"REDSCOPE_CREDENTIALS_FILE",
		"LOG_LEVEL",
		"LOG_FORMAT",
		"OTEL_ENABLED",
		"REDSCOPE_DEV_PORT",
		"REDSCOPE_DEV_ACCESS_TTL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "http://localhost:8000/api/v1", cfg.API.BaseURL)
	require.Equal(t, 30*time.Second, cfg.API.Timeout)
	require.NotEmpty(t, cfg.API.CredentialsFile)
	require.Equal(t, "info", cfg.Observability.LogLevel)
	require.False(t, cfg.Observability.OTELEnabled)
	require.Equal(t, "8000", cfg.Dev.Port)
	require.Equal(t, 15*time.Minute, cfg.Dev.AccessTokenTTL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("REDSCOPE_API_URL", "https://api.example.test/api/v1")
	t.Setenv("REDSCOPE_API_TIMEOUT", "5s")
	t.Setenv("REDSCOPE_CREDENTIALS_FILE", "/tmp/creds.json")
	t.Setenv("OTEL_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "https://api.example.test/api/v1", cfg.API.BaseURL)
	require.Equal(t, 5*time.Second, cfg.API.Timeout)
	require.Equal(t, "/tmp/creds.json", cfg.API.CredentialsFile)
	require.True(t, cfg.Observability.OTELEnabled)
}

func TestLoad_BadDurationFallsBack(t *testing.T) {
	t.Setenv("REDSCOPE_API_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, cfg.API.Timeout)
}
