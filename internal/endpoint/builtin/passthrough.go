package builtin

import (
	"net/http"

	"github.com/prism-gateway/llm-router/internal/apitype"
	"github.com/prism-gateway/llm-router/internal/core/domain"
	"github.com/prism-gateway/llm-router/internal/endpoint"
	"github.com/prism-gateway/llm-router/internal/registry"
)

func init() {
	for _, p := range chatPassthroughs() {
		registry.Register(p)
	}
	for _, p := range embeddingPassthroughs() {
		registry.Register(p)
	}
}

// chatPassthroughs mirrors the four equivalent chat-completions routes the
// original exposes across its OpenAI/LM Studio/vLLM/Ollama dialects, each
// forwarding the request body unchanged and relaying whatever dialect the
// chosen provider speaks; no local reshaping, PreparePayload stays nil.
func chatPassthroughs() []*endpoint.Descriptor {
	return []*endpoint.Descriptor{
		{
			Path:      "/chat/completions",
			Method:    http.MethodPost,
			ApiTypes:  endpoint.ApiTypeSet(domain.ApiTypeOpenAI, domain.ApiTypeLMStudio, domain.ApiTypeVLLM),
			Operation: apitype.OpChat,
		},
		{
			Path:             "/v1/chat/completions",
			Method:           http.MethodPost,
			DontAddAPIPrefix: true,
			ApiTypes:         endpoint.ApiTypeSet(domain.ApiTypeOpenAI, domain.ApiTypeLMStudio, domain.ApiTypeVLLM),
			Operation:        apitype.OpChat,
		},
		{
			Path:      "/api/chat/completions",
			Method:    http.MethodPost,
			ApiTypes:  endpoint.ApiTypeSet(domain.ApiTypeOpenAI, domain.ApiTypeLMStudio),
			Operation: apitype.OpChat,
		},
		{
			Path:      "/api/chat",
			Method:    http.MethodPost,
			ApiTypes:  endpoint.ApiTypeSet(domain.ApiTypeOllama),
			Operation: apitype.OpChat,
		},
		{
			Path:             "/v1/responses",
			Method:           http.MethodPost,
			DontAddAPIPrefix: true,
			ApiTypes:         endpoint.ApiTypeSet(domain.ApiTypeOpenAI, domain.ApiTypeLMStudio, domain.ApiTypeVLLM),
			Operation:        apitype.OpChat,
		},
	}
}

// embeddingPassthroughs mirrors the three equivalent embeddings routes.
func embeddingPassthroughs() []*endpoint.Descriptor {
	return []*endpoint.Descriptor{
		{
			Path:      "/api/embeddings",
			Method:    http.MethodPost,
			ApiTypes:  endpoint.ApiTypeSet(domain.ApiTypeOllama),
			Operation: apitype.OpEmbeddings,
		},
		{
			Path:             "/v1/embeddings",
			Method:           http.MethodPost,
			DontAddAPIPrefix: true,
			ApiTypes:         endpoint.ApiTypeSet(domain.ApiTypeOpenAI, domain.ApiTypeLMStudio),
			Operation:        apitype.OpEmbeddings,
		},
		{
			Path:      "/api/embed",
			Method:    http.MethodPost,
			ApiTypes:  endpoint.ApiTypeSet(domain.ApiTypeOllama, domain.ApiTypeLMStudio),
			Operation: apitype.OpEmbeddings,
		},
	}
}
