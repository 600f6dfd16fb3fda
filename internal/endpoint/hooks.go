package endpoint

import (
	"context"

	"github.com/prism-gateway/llm-router/internal/core/domain"
)

// runMaskingHook implements step 3: each registered masker rewrites the
// envelope in turn, its audit record (if any) forwarded to the auditor.
// The pipeline runs when masking is globally enabled or the request
// opts in via mask_payload=true.
func (e *Engine) runMaskingHook(ctx context.Context, env *domain.Envelope) error {
	if !e.MaskingEnabled && !env.Get("mask_payload").Bool() {
		return nil
	}
	for _, masker := range e.Maskers {
		verdict, err := masker.Mask(ctx, env)
		if err != nil {
			return domain.InternalError("masking pipeline failed", err)
		}
		if verdict.Envelope != nil {
			*env = *verdict.Envelope
		}
		if verdict.Audit != nil {
			_ = e.Auditor.Log(ctx, *verdict.Audit)
		}
	}
	return nil
}

// runGuardrailHook implements step 4: any BLOCK verdict short-circuits
// the request with a GuardrailBlocked problem.
func (e *Engine) runGuardrailHook(ctx context.Context, env *domain.Envelope) (*domain.Problem, error) {
	if !e.GuardrailEnabled {
		return nil, nil
	}
	for _, g := range e.Guardrails {
		verdict, err := g.Classify(ctx, env)
		if err != nil {
			return nil, domain.InternalError("guardrail pipeline failed", err)
		}
		if verdict.Audit != nil {
			_ = e.Auditor.Log(ctx, *verdict.Audit)
		}
		if verdict.Blocked {
			return domain.GuardrailBlockedError(verdict.Reason), nil
		}
	}
	return nil, nil
}

// runGuardrailResponseHook implements step 12: the same guardrail chain
// runs against the final upstream response, non-streaming only.
func (e *Engine) runGuardrailResponseHook(ctx context.Context, env *domain.Envelope) (*domain.Problem, error) {
	return e.runGuardrailHook(ctx, env)
}
