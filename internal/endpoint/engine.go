package endpoint

import (
	"time"

	"github.com/prism-gateway/llm-router/internal/audit"
	"github.com/prism-gateway/llm-router/internal/core/domain"
	"github.com/prism-gateway/llm-router/internal/core/ports"
	"github.com/prism-gateway/llm-router/internal/keepalive"
	"github.com/prism-gateway/llm-router/internal/relay"
	"go.uber.org/zap"
)

// Engine wires the collaborators every endpoint's dispatch pipeline
// shares: the catalog, the provider chooser, the prompt repository, the
// masking/guardrail hook chains, the auditor, and the upstream relay.
// One Engine instance is built at startup and reused across requests;
// all per-request state lives on the stack of Handler's closure.
type Engine struct {
	Catalog   *domain.Catalog
	Chooser   ports.Chooser
	Prompts   ports.PromptRepository
	Auditor   ports.Auditor
	Relay     *relay.Relay
	KeepAlive *keepalive.Monitor
	Logger    *zap.Logger

	Maskers    []ports.Masker
	Guardrails []ports.Guardrail

	DefaultLanguage  string
	Prefix           string
	RequestTimeout   time.Duration
	ExternalTimeout  time.Duration
	MaskingEnabled   bool
	GuardrailEnabled bool
}

// New builds an Engine. Collaborators left nil/zero-value behave as
// disabled (no maskers, no guardrails) rather than panicking, since a
// minimal deployment may run with none of them configured.
func New(catalog *domain.Catalog, chooser ports.Chooser, prompts ports.PromptRepository, auditor ports.Auditor, rl *relay.Relay, ka *keepalive.Monitor, logger *zap.Logger) *Engine {
	if auditor == nil {
		auditor = audit.NoopAuditor{}
	}
	return &Engine{
		Catalog:         catalog,
		Chooser:         chooser,
		Prompts:         prompts,
		Auditor:         auditor,
		Relay:           rl,
		KeepAlive:       ka,
		Logger:          logger,
		DefaultLanguage: "en",
		Prefix:          "/api",
		RequestTimeout:  300 * time.Second,
		ExternalTimeout: 60 * time.Second,
	}
}
