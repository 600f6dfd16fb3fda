package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `{
  "active_models": {"chat": ["gpt-4o", "llama3"]},
  "chat": {
    "gpt-4o": {
      "providers": [
        {"id": "openai-a", "api_host": "https://a.example/", "api_type": "openai", "input_size": "128000", "weight": 1.0}
      ],
      "providers_sleep": []
    },
    "llama3": {
      "providers": [
        {"id": "ollama-a", "api_host": "http://h1:11434", "api_type": "ollama", "input_size": 8192},
        {"id": "ollama-b", "api_host": "http://h2:11434", "api_type": "ollama", "input_size": 8192, "keep_alive": "30m"}
      ]
    }
  },
  "unused_group": {"ignored-model": {"providers": []}}
}`

func TestParse_HappyPath(t *testing.T) {
	cat, err := Parse([]byte(sampleCatalog))
	require.NoError(t, err)

	assert.True(t, cat.IsActive("gpt-4o"))
	assert.True(t, cat.IsActive("llama3"))
	assert.False(t, cat.IsActive("ignored-model"))

	entry, ok := cat.Entry("gpt-4o")
	require.True(t, ok)
	require.Len(t, entry.Providers, 1)
	assert.Equal(t, 128000, entry.Providers[0].InputSize)
}

func TestParse_MissingActiveModels(t *testing.T) {
	_, err := Parse([]byte(`{"chat": {}}`))
	require.Error(t, err)
	var bad *BadCatalogError
	assert.ErrorAs(t, err, &bad)
}

func TestParse_UnresolvedActiveName(t *testing.T) {
	_, err := Parse([]byte(`{"active_models": {"chat": ["missing"]}, "chat": {}}`))
	require.Error(t, err)
}

func TestParse_GroupAbsent(t *testing.T) {
	_, err := Parse([]byte(`{"active_models": {"chat": ["m"]}}`))
	require.Error(t, err)
}

func TestParse_BadInputSize(t *testing.T) {
	doc := `{
	  "active_models": {"chat": ["m"]},
	  "chat": {"m": {"providers": [{"id": "p", "api_host": "h", "api_type": "openai", "input_size": "not-a-number"}]}}
	}`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
}

func TestParse_EmptyProvidersIsNotFatal(t *testing.T) {
	doc := `{"active_models": {"chat": ["m"]}, "chat": {"m": {"providers": []}}}`
	cat, err := Parse([]byte(doc))
	require.NoError(t, err)
	entry, ok := cat.Entry("m")
	require.True(t, ok)
	assert.Empty(t, entry.Providers)
}

func TestParse_IsPureFunction(t *testing.T) {
	c1, err1 := Parse([]byte(sampleCatalog))
	c2, err2 := Parse([]byte(sampleCatalog))
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, c1.ActiveModelNames(), c2.ActiveModelNames())
}

func TestParse_CatalogVersionAbsentIsFine(t *testing.T) {
	_, err := Parse([]byte(sampleCatalog))
	require.NoError(t, err)
}

func TestParse_CatalogVersionInSupportedRange(t *testing.T) {
	doc := `{"catalog_version": "1.2", "active_models": {"chat": ["m"]}, "chat": {"m": {"providers": []}}}`
	_, err := Parse([]byte(doc))
	require.NoError(t, err)
}

func TestParse_CatalogVersionOutOfRange(t *testing.T) {
	doc := `{"catalog_version": "2.0", "active_models": {"chat": ["m"]}, "chat": {"m": {"providers": []}}}`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	var bad *BadCatalogError
	require.ErrorAs(t, err, &bad)
}

func TestParse_CatalogVersionUnparsable(t *testing.T) {
	doc := `{"catalog_version": "not-a-version", "active_models": {"chat": ["m"]}, "chat": {"m": {"providers": []}}}`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
}

func TestParse_ApiTokenEnvVarSubstitution(t *testing.T) {
	t.Setenv("BENCH_TOKEN", "secret-value")
	doc := `{
	  "active_models": {"chat": ["m"]},
	  "chat": {"m": {"providers": [{"id": "p", "api_host": "h", "api_type": "openai", "api_token": "${BENCH_TOKEN}", "input_size": 1}]}}
	}`
	cat, err := Parse([]byte(doc))
	require.NoError(t, err)
	entry, ok := cat.Entry("m")
	require.True(t, ok)
	require.Equal(t, "secret-value", entry.Providers[0].ApiToken)
}

func TestDuplicateProviderIDs(t *testing.T) {
	doc := `{
	  "active_models": {"chat": ["a", "b"]},
	  "chat": {
	    "a": {"providers": [{"id": "dup", "api_host": "h", "api_type": "openai", "input_size": 1}]},
	    "b": {"providers": [{"id": "dup", "api_host": "h2", "api_type": "openai", "input_size": 1}]}
	  }
	}`
	cat, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Contains(t, cat.DuplicateProviderIDs(), "dup")
}
