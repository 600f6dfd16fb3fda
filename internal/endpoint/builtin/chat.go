package builtin

import (
	"context"
	"net/http"
	"time"

	"github.com/prism-gateway/llm-router/internal/apitype"
	"github.com/prism-gateway/llm-router/internal/core/domain"
	"github.com/prism-gateway/llm-router/internal/endpoint"
	"github.com/prism-gateway/llm-router/internal/registry"
)

var genaiOptArgsBase = []string{
	"max_new_tokens", "top_k", "top_p", "temperature", "typical_p", "repetition_penalty", "language",
}

func init() {
	registry.Register(conversationWithModel())
	registry.Register(extendedConversationWithModel())
}

func conversationWithModel() *endpoint.Descriptor {
	return &endpoint.Descriptor{
		Path:         "/conversation_with_model",
		Method:       http.MethodPost,
		ApiTypes:     endpoint.ApiTypeSet(domain.ApiTypeBuiltin),
		Operation:    apitype.OpChat,
		RequiredArgs: []string{"model_name", "user_last_statement"},
		OptionalArgs: append(append([]string{}, genaiOptArgsBase...), "historical_messages"),
		SystemPromptName: map[string]string{
			"pl": "builtin/system/pl/chat-conversation-simple",
			"en": "builtin/system/en/chat-conversation-simple",
		},
		PreparePayload:            prepareConversation,
		PrepareSingleResponseFunc: prepareConversationResponse,
	}
}

func extendedConversationWithModel() *endpoint.Descriptor {
	return &endpoint.Descriptor{
		Path:                      "/extended_conversation_with_model",
		Method:                    http.MethodPost,
		ApiTypes:                  endpoint.ApiTypeSet(domain.ApiTypeBuiltin),
		Operation:                 apitype.OpChat,
		RequiredArgs:              []string{"model_name", "user_last_statement", "system_prompt"},
		OptionalArgs:              append(append([]string{}, genaiOptArgsBase...), "historical_messages"),
		PreparePayload:            prepareExtendedConversation,
		PrepareSingleResponseFunc: prepareConversationResponse,
	}
}

// prepareConversation builds messages = history + [user], then lets
// §4.5 step 7 prepend the resolved system prompt ahead of all of it.
func prepareConversation(_ context.Context, env *domain.Envelope) (endpoint.PrepareResult, error) {
	setModelFromModelName(env)

	userMsg := `{"role":"user","content":` + jsonString(env.Get("user_last_statement").String()) + `}`
	messages := joinMessages(historicalMessages(env), userMsg)

	if err := env.SetRaw("messages", messages); err != nil {
		return endpoint.PrepareResult{}, err
	}
	_ = env.Delete("historical_messages")
	_ = env.Delete("user_last_statement")

	return endpoint.PrepareResult{Envelope: env}, nil
}

// prepareExtendedConversation builds messages = [system, user] + history,
// with the client-supplied system_prompt used verbatim instead of a
// resolved template (no SYSTEM_PROMPT_NAME is declared for this endpoint).
func prepareExtendedConversation(_ context.Context, env *domain.Envelope) (endpoint.PrepareResult, error) {
	setModelFromModelName(env)

	systemMsg := `{"role":"system","content":` + jsonString(env.Get("system_prompt").String()) + `}`
	userMsg := `{"role":"user","content":` + jsonString(env.Get("user_last_statement").String()) + `}`
	messages := joinMessages(systemMsg, userMsg, historicalMessages(env))

	if err := env.SetRaw("messages", messages); err != nil {
		return endpoint.PrepareResult{}, err
	}
	_ = env.Delete("historical_messages")
	_ = env.Delete("user_last_statement")
	_ = env.Delete("system_prompt")

	return endpoint.PrepareResult{Envelope: env}, nil
}

func prepareConversationResponse(resp *domain.Envelope, elapsed time.Duration) (*domain.Envelope, error) {
	return generationResponse(endpoint.ExtractContent(resp), elapsed), nil
}
