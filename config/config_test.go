package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "mock", cfg.Provider.Type)
	assert.Equal(t, 5, cfg.Gateway.FailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.Gateway.FailureWindow)
	assert.Equal(t, 100, cfg.Router.GlobalRate)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.TurnTimeout)
	assert.Equal(t, "50.00", cfg.Escalation.HighValueThreshold)
	assert.Equal(t, 0.6, cfg.Escalation.ConfidenceFloor)
	assert.Equal(t, 5*time.Minute, cfg.Knowledge.CacheTTL)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
provider:
  type: openai
  model: gpt-4o-mini
escalation:
  high_value_threshold: "100.00"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "openai", cfg.Provider.Type)
	assert.Equal(t, "gpt-4o-mini", cfg.Provider.Model)
	assert.Equal(t, "100.00", cfg.Escalation.HighValueThreshold)
	// Untouched keys keep defaults.
	assert.Equal(t, 1000, cfg.Router.MaxDepth)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("REPLYPIPE_SERVER_PORT", "7070")
	t.Setenv("REPLYPIPE_PROVIDER_TYPE", "anthropic")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "anthropic", cfg.Provider.Type)
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}
