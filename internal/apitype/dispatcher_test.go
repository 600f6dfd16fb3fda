package apitype

import (
	"testing"

	"github.com/prism-gateway/llm-router/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_KnownDialects(t *testing.T) {
	cases := []struct {
		apiType domain.ApiType
		op      Operation
		want    Route
	}{
		{domain.ApiTypeOpenAI, OpChat, Route{"POST", "/v1/chat/completions"}},
		{domain.ApiTypeOpenAI, OpEmbeddings, Route{"POST", "/v1/embeddings"}},
		{domain.ApiTypeVLLM, OpChat, Route{"POST", "/v1/chat/completions"}},
		{domain.ApiTypeOllama, OpChat, Route{"POST", "/api/chat"}},
		{domain.ApiTypeOllama, OpEmbeddings, Route{"POST", "/api/embed"}},
		{domain.ApiTypeLMStudio, OpChat, Route{"POST", "/api/v0/chat/completions"}},
		{domain.ApiTypeLMStudio, OpEmbeddings, Route{"POST", "/api/v0/embeddings"}},
	}

	for _, tc := range cases {
		got, err := Resolve(tc.apiType, tc.op)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestResolve_UnknownApiType(t *testing.T) {
	_, err := Resolve(domain.ApiType("carbon"), OpChat)
	require.Error(t, err)
	var unknown *ErrUnknownApiType
	assert.ErrorAs(t, err, &unknown)
}

func TestKnown_Builtin(t *testing.T) {
	assert.True(t, Known(domain.ApiTypeBuiltin))
	assert.False(t, Known(domain.ApiType("nope")))
}
