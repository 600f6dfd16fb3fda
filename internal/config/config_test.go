package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "/api", cfg.Server.Prefix)
	assert.Equal(t, "balanced", cfg.Strategy.Name)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, 300*time.Second, cfg.Server.RequestTimeout)
	assert.False(t, cfg.Audit.Enabled)
}

func TestLoadConfig_CanonicalEnvOverridesDefault(t *testing.T) {
	os.Clearenv()
	t.Setenv("LLM_ROUTER_SERVER_PORT", "9090")
	t.Setenv("LLM_ROUTER_STRATEGY_NAME", "weighted")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "weighted", cfg.Strategy.Name)
}

func TestLoadConfig_LegacyPrefixAcceptedAsFallback(t *testing.T) {
	os.Clearenv()
	t.Setenv("LLM_PROXY_API_SERVER_PORT", "7070")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
}

func TestLoadConfig_CanonicalWinsOverLegacy(t *testing.T) {
	os.Clearenv()
	t.Setenv("LLM_ROUTER_SERVER_PORT", "9090")
	t.Setenv("LLM_PROXY_API_SERVER_PORT", "7070")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
}
