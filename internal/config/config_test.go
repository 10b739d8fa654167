package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 2, cfg.Dispatch.WorkerCount)
	require.True(t, cfg.Dispatch.Simulate)
	require.Equal(t, 5, cfg.Queue.MaxRetries)
	require.Equal(t, "info", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
dispatch:
  timeout: 10s
  simulate: false
webhooks:
  - url: https://example.com/hook
    secret: s3cret
    events: [job_failed]
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 10*time.Second, cfg.Dispatch.Timeout)
	require.False(t, cfg.Dispatch.Simulate)
	// Untouched sections keep their defaults.
	require.Equal(t, "./data/printrouter.db", cfg.Database.Path)

	require.Len(t, cfg.Webhooks, 1)
	require.True(t, cfg.Webhooks[0].Wants("job_failed"))
	require.False(t, cfg.Webhooks[0].Wants("job_completed"))
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PRINTROUTER_PORT", "7070")
	t.Setenv("PRINTROUTER_SIMULATE", "false")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
	require.False(t, cfg.Dispatch.Simulate)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"zero dispatch timeout", func(c *Config) { c.Dispatch.Timeout = 0 }},
		{"zero workers", func(c *Config) { c.Dispatch.WorkerCount = 0 }},
		{"negative retries", func(c *Config) { c.Queue.MaxRetries = -1 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"webhook without url", func(c *Config) { c.Webhooks = []WebhookEndpoint{{Secret: "s"}} }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaults()
			tc.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestWebhookWantsAllWhenUnfiltered(t *testing.T) {
	ep := WebhookEndpoint{URL: "https://example.com"}
	require.True(t, ep.Wants("job_started"))
	require.True(t, ep.Wants("job_failed"))
}
