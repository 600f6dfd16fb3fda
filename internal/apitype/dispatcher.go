// Package apitype maps a provider's api_type tag to the concrete upstream
// wire dialect: the URL path and HTTP method to use for chat, completions,
// and embeddings. This table is the only place the gateway hardcodes
// upstream wire dialects.
package apitype

import (
	"fmt"

	"github.com/prism-gateway/llm-router/internal/core/domain"
)

// Operation enumerates the upstream operations a provider call can target.
type Operation string

const (
	OpChat         Operation = "chat"
	OpCompletions  Operation = "completions"
	OpEmbeddings   Operation = "embeddings"
)

// Route is the (method, path) pair to use for one operation of one api_type.
type Route struct {
	Method string
	Path   string
}

type dialect struct {
	chat        Route
	completions Route
	embeddings  Route
}

var dialects = map[domain.ApiType]dialect{
	domain.ApiTypeOpenAI: {
		chat:        Route{"POST", "/v1/chat/completions"},
		completions: Route{"POST", "/v1/completions"},
		embeddings:  Route{"POST", "/v1/embeddings"},
	},
	domain.ApiTypeVLLM: {
		chat:        Route{"POST", "/v1/chat/completions"},
		completions: Route{"POST", "/v1/completions"},
		embeddings:  Route{"POST", "/v1/embeddings"},
	},
	domain.ApiTypeOllama: {
		chat:        Route{"POST", "/api/chat"},
		completions: Route{"POST", "/api/generate"},
		embeddings:  Route{"POST", "/api/embed"},
	},
	domain.ApiTypeLMStudio: {
		chat:        Route{"POST", "/api/v0/chat/completions"},
		completions: Route{"POST", "/api/v0/completions"},
		embeddings:  Route{"POST", "/api/v0/embeddings"},
	},
}

// ErrUnknownApiType is returned when the api_type tag has no known dialect.
type ErrUnknownApiType struct {
	ApiType domain.ApiType
}

func (e *ErrUnknownApiType) Error() string {
	return fmt.Sprintf("unknown api_type: %q", e.ApiType)
}

// Resolve returns the route to use for op against a provider speaking
// apiType. The "builtin" api_type never resolves to an upstream route:
// builtin endpoints post-process locally and never call this dispatcher.
func Resolve(apiType domain.ApiType, op Operation) (Route, error) {
	d, ok := dialects[apiType]
	if !ok {
		return Route{}, &ErrUnknownApiType{ApiType: apiType}
	}

	switch op {
	case OpChat:
		return d.chat, nil
	case OpCompletions:
		return d.completions, nil
	case OpEmbeddings:
		return d.embeddings, nil
	default:
		return Route{}, fmt.Errorf("unknown operation %q", op)
	}
}

// Known reports whether apiType has an entry in the dispatch table.
func Known(apiType domain.ApiType) bool {
	if apiType == domain.ApiTypeBuiltin {
		return true
	}
	_, ok := dialects[apiType]
	return ok
}
