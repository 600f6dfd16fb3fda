// Package endpoint implements the request dispatch pipeline every HTTP
// route in the gateway runs through: parse, validate, mask, guardrail,
// prepare, select a provider, call upstream, guardrail again, respond,
// release.
package endpoint

import (
	"context"
	"fmt"
	"time"

	"github.com/prism-gateway/llm-router/internal/apitype"
	"github.com/prism-gateway/llm-router/internal/core/domain"
	"github.com/prism-gateway/llm-router/internal/core/ports"
)

// PrepareResult is what an endpoint's PreparePayload hook hands back to
// the dispatch pipeline: the upstream-ready envelope plus the system
// prompt assembly instructions the teacher's original called
// _map_prompt/_prompt_str_postfix/_prompt_str_force.
type PrepareResult struct {
	Envelope *domain.Envelope

	// MapPrompt is a set of literal placeholder tokens (e.g.
	// "##QUESTION_NUM_STR##") to substitute into the resolved system
	// prompt template, single-pass and left-to-right.
	MapPrompt map[string]string
	// PromptPostfix is appended to the resolved template after
	// substitution, when non-empty.
	PromptPostfix string
	// PromptForce, when non-empty, is used verbatim as the system
	// prompt instead of resolving SystemPromptName.
	PromptForce string
}

// PreparePayloadFunc is an endpoint's own request transformation (step 5
// of the dispatch lifecycle). A nil PreparePayloadFunc means identity:
// the envelope is forwarded unchanged (simple-proxy mode).
type PreparePayloadFunc func(ctx context.Context, req *domain.Envelope) (PrepareResult, error)

// PrepareResponseFunc aggregates the per-user-message upstream responses
// of a call_for_each_user_msg endpoint into the single envelope returned
// to the client. responses holds the raw decoded upstream bodies, one per
// user message, in request order; requestTexts holds the original user
// message content each response answers (not the response text) so an
// aggregator can pair a source text with its answer without threading
// extra state through the request. Use endpoint.ExtractContent(responses[i])
// to pull the answer text back out of a response.
type PrepareResponseFunc func(responses []*domain.Envelope, requestTexts []string) (*domain.Envelope, error)

// PrepareSingleResponseFunc is the single-upstream-call counterpart of
// PrepareResponseFunc: it reshapes the one upstream body a non-multi-shot
// builtin endpoint received into whatever structure it promises its
// callers (e.g. {"response": ..., "generation_time": ...}) instead of
// relaying the upstream body verbatim. elapsed is the upstream call's own
// latency. Simple-proxy endpoints leave this nil and get the upstream
// body back unchanged.
type PrepareSingleResponseFunc func(resp *domain.Envelope, elapsed time.Duration) (*domain.Envelope, error)

// Descriptor is the static declaration of one concrete endpoint.
type Descriptor struct {
	// Path is relative to the server's configured prefix unless
	// DontAddAPIPrefix is set, in which case it is absolute.
	Path   string
	Method string

	// ApiTypes is the set of upstream dialects this endpoint can target.
	// An endpoint that never calls upstream (builtin post-processing
	// only) declares {domain.ApiTypeBuiltin}.
	ApiTypes map[domain.ApiType]struct{}
	// Operation selects which apitype route (chat/completions/
	// embeddings) to resolve for the chosen provider.
	Operation apitype.Operation

	RequiredArgs []string
	OptionalArgs []string

	// SystemPromptName maps a request language to the prompt-id to
	// resolve via the prompt repository. Nil means no system prompt
	// injection (step 7 of the lifecycle is skipped).
	SystemPromptName map[string]string

	DirectReturn       bool
	CallForEachUserMsg bool
	DontAddAPIPrefix   bool

	PreparePayload            PreparePayloadFunc
	PrepareResponseFunction   PrepareResponseFunc
	PrepareSingleResponseFunc PrepareSingleResponseFunc

	// Chooser overrides the engine's default selection strategy for this
	// endpoint only. Nil means use the engine's Chooser. Set by
	// registry.ApplyManifest when the declarative registration manifest
	// pins a strategy to this endpoint's (method, path).
	Chooser ports.Chooser
}

// Validate enforces the invariants the base spec requires to be caught
// at registration time rather than per-request.
func (d *Descriptor) Validate() error {
	if d.Path == "" {
		return fmt.Errorf("endpoint: descriptor has no path")
	}
	if d.Method == "" {
		return fmt.Errorf("endpoint %s: no method set", d.Path)
	}
	if d.CallForEachUserMsg && d.DirectReturn {
		return fmt.Errorf("endpoint %s: call_for_each_user_msg and direct_return are mutually exclusive", d.Path)
	}
	if d.CallForEachUserMsg && d.PrepareResponseFunction == nil {
		return fmt.Errorf("endpoint %s: call_for_each_user_msg requires a PrepareResponseFunction", d.Path)
	}
	if len(d.ApiTypes) == 0 {
		return fmt.Errorf("endpoint %s: must declare at least one api_type (use domain.ApiTypeBuiltin for local-only endpoints)", d.Path)
	}
	return nil
}

// chooserFor resolves which Chooser dispatch should use for this
// endpoint: its own override when the registration manifest pinned one,
// otherwise the engine's default.
func (d *Descriptor) chooserFor(e *Engine) ports.Chooser {
	if d.Chooser != nil {
		return d.Chooser
	}
	return e.Chooser
}

// IsBuiltin reports whether the endpoint never calls an upstream
// provider and only post-processes locally.
func (d *Descriptor) IsBuiltin() bool {
	_, ok := d.ApiTypes[domain.ApiTypeBuiltin]
	return ok
}

// AcceptsApiType reports whether apiType is in the endpoint's declared set.
func (d *Descriptor) AcceptsApiType(apiType domain.ApiType) bool {
	_, ok := d.ApiTypes[apiType]
	return ok
}

// ApiTypeSet is a convenience constructor for Descriptor.ApiTypes.
func ApiTypeSet(types ...domain.ApiType) map[domain.ApiType]struct{} {
	out := make(map[domain.ApiType]struct{}, len(types))
	for _, t := range types {
		out[t] = struct{}{}
	}
	return out
}
