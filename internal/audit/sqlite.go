// Package audit is the optional local sink for masker/guardrail audit
// records (§6's Auditor collaborator). It does not persist request
// history beyond these records; that remains out of scope per the base
// spec's Non-goals.
package audit

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prism-gateway/llm-router/internal/core/ports"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteAuditor implements ports.Auditor against a local SQLite database.
// The core never requires encryption at rest; operators who need it can
// point dsn at an encrypted filesystem or swap in another Auditor.
type SQLiteAuditor struct {
	db *sqlx.DB
}

// NewSQLiteAuditor opens (creating if absent) the database at dsn and
// applies pending migrations.
func NewSQLiteAuditor(dsn string) (*SQLiteAuditor, error) {
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: connect to sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: migration failed: %w", err)
	}

	return &SQLiteAuditor{db: db}, nil
}

func runMigrations(db *sqlx.DB) error {
	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return err
	}
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// Log implements ports.Auditor.
func (a *SQLiteAuditor) Log(ctx context.Context, record ports.AuditRecord) error {
	payload, err := json.Marshal(record.Payload)
	if err != nil {
		return fmt.Errorf("audit: marshal payload: %w", err)
	}
	_, err = a.db.ExecContext(ctx,
		`INSERT INTO audit_log (audit_type, payload_json) VALUES (?, ?)`,
		record.AuditType, string(payload))
	return err
}

// Close releases the underlying database handle.
func (a *SQLiteAuditor) Close() error {
	return a.db.Close()
}

var _ ports.Auditor = (*SQLiteAuditor)(nil)
