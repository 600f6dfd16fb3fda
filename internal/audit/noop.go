package audit

import (
	"context"

	"github.com/prism-gateway/llm-router/internal/core/ports"
)

// NoopAuditor discards every record. Used when the audit sink is
// disabled in configuration, so hook callers never need a nil check.
type NoopAuditor struct{}

func (NoopAuditor) Log(context.Context, ports.AuditRecord) error { return nil }

var _ ports.Auditor = NoopAuditor{}
