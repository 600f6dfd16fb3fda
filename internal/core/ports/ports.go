// Package ports declares the narrow contracts the request-routing engine
// depends on but does not implement: provider selection, coordination
// storage, prompt lookup, and the masker/guardrail/auditor hook chain.
package ports

import (
	"context"
	"time"

	"github.com/prism-gateway/llm-router/internal/core/domain"
)

// Chooser picks one provider from a list for a given model. Implementations
// must be safe under concurrent calls from many request handlers.
type Chooser interface {
	// Choose resolves a concrete provider for modelName from providers.
	Choose(ctx context.Context, modelName string, providers []domain.ProviderSpec) (domain.ProviderSpec, error)
	// Release returns any coordination-store resources the Choose call for
	// (modelName, providerID) acquired. It is a no-op for strategies that
	// keep no cross-request lock.
	Release(ctx context.Context, modelName, providerID string) error
	// Name is the strategy's registration name ("balanced", "weighted", ...).
	Name() string
}

// LatencyObserver is implemented by strategies that adapt to upstream
// performance (dynamic_weighted). The endpoint dispatch pipeline calls
// Observe after every upstream attempt, successful or not; strategies
// that don't need this feedback simply don't implement the interface,
// and the pipeline checks for it with a type assertion.
type LatencyObserver interface {
	Observe(ctx context.Context, modelName, providerID string, latency time.Duration, success bool)
}

// KeepAlivePinger sends the lightweight request that keeps a provider's
// model resident (e.g. Ollama's empty-prompt generate call).
type KeepAlivePinger interface {
	Ping(ctx context.Context, modelName string, provider domain.ProviderSpec) error
}

// PromptRepository resolves a named, language-scoped prompt template.
type PromptRepository interface {
	Get(ctx context.Context, promptID, language string) (string, error)
}

// ErrPromptNotFound is returned by PromptRepository when the id/language
// pair has no template.
var ErrPromptNotFound = &NotFoundError{Resource: "prompt"}

// NotFoundError is a generic "no such resource" sentinel used by
// collaborators that are out of this system's scope (prompt repository,
// masker/guardrail services) but whose lookup contract this engine relies
// on.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

// AuditRecord is what the masker/guardrail hooks hand to the auditor.
type AuditRecord struct {
	AuditType string
	Payload   map[string]interface{}
}

// Auditor logs audit events. The core does not require the implementation
// to encrypt at rest; it only requires this narrow contract.
type Auditor interface {
	Log(ctx context.Context, record AuditRecord) error
}

// MaskVerdict is the result of one masking rule engine pass.
type MaskVerdict struct {
	Envelope *domain.Envelope
	Audit    *AuditRecord
}

// Masker rewrites an envelope according to one named masking rule set.
type Masker interface {
	Name() string
	Mask(ctx context.Context, env *domain.Envelope) (MaskVerdict, error)
}

// GuardrailVerdict is the outcome of a guardrail classifier pass.
type GuardrailVerdict struct {
	Blocked bool
	Reason  string
	Audit   *AuditRecord
}

// Guardrail classifies an envelope (request or response) as allow/block.
type Guardrail interface {
	Name() string
	Classify(ctx context.Context, env *domain.Envelope) (GuardrailVerdict, error)
}
