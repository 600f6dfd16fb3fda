package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prism-gateway/llm-router/internal/core/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteAuditor_LogPersistsRecord(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "audit.db") + "?cache=shared&mode=rwc"

	auditor, err := NewSQLiteAuditor(dsn)
	require.NoError(t, err)
	defer auditor.Close()

	err = auditor.Log(context.Background(), ports.AuditRecord{
		AuditType: "mask",
		Payload:   map[string]interface{}{"rule": "pii-email"},
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, auditor.db.Get(&count, `SELECT COUNT(*) FROM audit_log WHERE audit_type = ?`, "mask"))
	assert.Equal(t, 1, count)
}

func TestSQLiteAuditor_MigrationsAreIdempotent(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "audit.db") + "?cache=shared&mode=rwc"

	a1, err := NewSQLiteAuditor(dsn)
	require.NoError(t, err)
	a1.Close()

	a2, err := NewSQLiteAuditor(dsn)
	require.NoError(t, err)
	defer a2.Close()
}

func TestNoopAuditor_Log(t *testing.T) {
	var a NoopAuditor
	assert.NoError(t, a.Log(context.Background(), ports.AuditRecord{AuditType: "x"}))
}
