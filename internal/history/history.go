// Package history keeps an optional SQLite audit log of deployment invocations.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"deployhook/internal/security"

	_ "modernc.org/sqlite"
)

// History manages the invocation audit log in SQLite
type History struct {
	db *sql.DB
}

// NewHistory opens or creates the database at dbPath.
func NewHistory(dbPath string) (*History, error) {
	if dbPath != ":memory:" && !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(filepath.Dir(dbPath), security.PermDirectory); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		if err := security.EnsureSecureFile(dbPath, security.PermDBFile); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	h := &History{db: db}

	if err := h.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return h, nil
}

// Close closes the database connection
func (h *History) Close() error {
	return h.db.Close()
}

func (h *History) initSchema() error {
	_, err := h.db.Exec(`
		CREATE TABLE IF NOT EXISTS invocations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			invocation_id TEXT NOT NULL,
			delivery_id TEXT,
			service TEXT NOT NULL,
			ref TEXT NOT NULL,
			commit_hash TEXT,
			status TEXT NOT NULL,
			exit_code INTEGER,
			started_at TEXT NOT NULL,
			duration_seconds REAL,
			error_message TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	_, err = h.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_service_id
		ON invocations(service, id DESC)
	`)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// Record stores an invocation and returns its row ID.
func (h *History) Record(ctx context.Context, record *InvocationRecord) (int64, error) {
	startedAt := record.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	result, err := h.db.ExecContext(ctx, `
		INSERT INTO invocations
		(invocation_id, delivery_id, service, ref, commit_hash, status,
		 exit_code, started_at, duration_seconds, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.InvocationID,
		record.DeliveryID,
		record.Service,
		record.Ref,
		record.CommitHash,
		record.Status,
		record.ExitCode,
		startedAt.UTC().Format(time.RFC3339Nano),
		record.DurationSeconds,
		record.ErrorMessage,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert invocation record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return id, nil
}

const selectColumns = `
	SELECT id, invocation_id, delivery_id, service, ref, commit_hash, status,
	       exit_code, started_at, duration_seconds, error_message
	FROM invocations`

// GetLatest returns the most recent invocation for a service, or nil.
func (h *History) GetLatest(ctx context.Context, service string) (*InvocationRecord, error) {
	row := h.db.QueryRowContext(ctx, selectColumns+`
		WHERE service = ?
		ORDER BY id DESC
		LIMIT 1
	`, service)

	record, err := scanInvocationRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest invocation: %w", err)
	}

	return record, nil
}

// GetHistory returns up to limit invocations for a service, newest first.
func (h *History) GetHistory(ctx context.Context, service string, limit int) ([]InvocationRecord, error) {
	rows, err := h.db.QueryContext(ctx, selectColumns+`
		WHERE service = ?
		ORDER BY id DESC
		LIMIT ?
	`, service, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query invocation history: %w", err)
	}
	defer rows.Close()

	records := []InvocationRecord{}
	for rows.Next() {
		record, err := scanInvocationRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invocation record: %w", err)
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

// GetStatus combines GetLatest and GetHistory.
func (h *History) GetStatus(ctx context.Context, service string, limit int) (*ServiceStatus, error) {
	latest, err := h.GetLatest(ctx, service)
	if err != nil {
		return nil, err
	}
	recent, err := h.GetHistory(ctx, service, limit)
	if err != nil {
		return nil, err
	}
	return &ServiceStatus{Service: service, Latest: latest, Recent: recent}, nil
}

// scanner is implemented by both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanInvocationRecord(s scanner) (*InvocationRecord, error) {
	var record InvocationRecord
	var startedAtStr string
	var exitCode sql.NullInt64

	err := s.Scan(
		&record.ID,
		&record.InvocationID,
		&record.DeliveryID,
		&record.Service,
		&record.Ref,
		&record.CommitHash,
		&record.Status,
		&exitCode,
		&startedAtStr,
		&record.DurationSeconds,
		&record.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}

	startedAt, err := time.Parse(time.RFC3339Nano, startedAtStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at timestamp: %w", err)
	}
	record.StartedAt = startedAt

	if exitCode.Valid {
		code := int(exitCode.Int64)
		record.ExitCode = &code
	}

	return &record, nil
}
