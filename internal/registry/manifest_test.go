package registry

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registrations.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadManifest_MissingFileIsZeroValue(t *testing.T) {
	m, err := LoadManifest(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.True(t, m.Enabled(http.MethodPost, "/api/chat"))
	assert.Equal(t, "", m.StrategyFor(http.MethodPost, "/api/chat"))
}

func TestLoadManifest_ParsesEntries(t *testing.T) {
	path := writeManifest(t, `
endpoints:
  - path: /api/chat
    method: POST
    enabled: false
  - path: /api/translate
    method: POST
    strategy: first_available
`)

	m, err := LoadManifest(path)
	require.NoError(t, err)

	assert.False(t, m.Enabled(http.MethodPost, "/api/chat"))
	assert.True(t, m.Enabled(http.MethodPost, "/api/translate"))
	assert.Equal(t, "first_available", m.StrategyFor(http.MethodPost, "/api/translate"))
	assert.Equal(t, "", m.StrategyFor(http.MethodPost, "/api/chat"))
}

func TestLoadManifest_UnrelatedEndpointIsUnaffected(t *testing.T) {
	path := writeManifest(t, `
endpoints:
  - path: /api/chat
    method: POST
    enabled: false
`)

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.True(t, m.Enabled(http.MethodGet, "/api/chat"))
	assert.True(t, m.Enabled(http.MethodPost, "/api/other"))
}

func TestLoadManifest_InvalidYAMLIsAnError(t *testing.T) {
	path := writeManifest(t, "endpoints: [this is not: valid: yaml")

	_, err := LoadManifest(path)
	require.Error(t, err)
}

func TestManifest_StrategyNames_DeduplicatesAndSkipsEmpty(t *testing.T) {
	path := writeManifest(t, `
endpoints:
  - path: /api/a
    method: POST
    strategy: weighted
  - path: /api/b
    method: POST
    strategy: weighted
  - path: /api/c
    method: POST
  - path: /api/d
    method: POST
    strategy: first_available_optim
`)

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"weighted", "first_available_optim"}, m.StrategyNames())
}

func TestManifest_NilManifestBehavesAsEmpty(t *testing.T) {
	var m *Manifest
	assert.True(t, m.Enabled(http.MethodPost, "/api/chat"))
	assert.Equal(t, "", m.StrategyFor(http.MethodPost, "/api/chat"))
	assert.Nil(t, m.StrategyNames())
}
