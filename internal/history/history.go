package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"buildgate/internal/gate"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// History stores build reports and the gate decisions made from them in SQLite
type History struct {
	db *sql.DB
}

// NewHistory opens (or creates) the history database
func NewHistory(dbPath string) (*History, error) {
	// Open database connection
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for SQLite (single writer)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	h := &History{db: db}

	// Initialize schema
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

// initSchema creates the database tables and indexes
func (h *History) initSchema() error {
	statements := []struct {
		what string
		sql  string
	}{
		{"decisions table", `
			CREATE TABLE IF NOT EXISTS decisions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				decision_id TEXT NOT NULL UNIQUE,
				project TEXT NOT NULL,
				gate TEXT NOT NULL,
				ref TEXT NOT NULL,
				from_hash TEXT,
				to_hash TEXT,
				outcome TEXT NOT NULL,
				reason TEXT NOT NULL,
				commit_hash TEXT,
				summary TEXT,
				message TEXT,
				created_at TEXT NOT NULL
			)
		`},
		{"decisions index", `
			CREATE INDEX IF NOT EXISTS idx_decisions_project
			ON decisions(project, id DESC)
		`},
		{"build_reports table", `
			CREATE TABLE IF NOT EXISTS build_reports (
				project TEXT NOT NULL,
				commit_hash TEXT NOT NULL,
				report_key TEXT NOT NULL,
				state TEXT NOT NULL,
				name TEXT,
				url TEXT,
				description TEXT,
				updated_at TEXT NOT NULL,
				PRIMARY KEY (project, commit_hash, report_key)
			)
		`},
	}

	for _, stmt := range statements {
		if _, err := h.db.Exec(stmt.sql); err != nil {
			return fmt.Errorf("failed to create %s: %w", stmt.what, err)
		}
	}

	return nil
}

// NewDecisionRecord builds a record for a decision taken on a ref change
func NewDecisionRecord(project, gateName string, change gate.RefChange, d gate.Decision) *DecisionRecord {
	return &DecisionRecord{
		Project:  project,
		Gate:     gateName,
		Ref:      change.RefID,
		FromHash: stringPtrOrNil(change.FromHash),
		ToHash:   stringPtrOrNil(change.ToHash),
		Outcome:  d.Outcome.String(),
		Reason:   string(d.Reason),
		Commit:   stringPtrOrNil(d.Commit),
		Summary:  stringPtrOrNil(d.Summary),
		Message:  stringPtrOrNil(d.Message),
	}
}

// RecordDecision records a gate decision. A decision ID is generated when
// the record has none; the stored record is updated in place.
func (h *History) RecordDecision(ctx context.Context, record *DecisionRecord) (int64, error) {
	if record.DecisionID == "" {
		record.DecisionID = uuid.NewString()
	}
	record.CreatedAt = time.Now().UTC()

	result, err := h.db.ExecContext(ctx, `
		INSERT INTO decisions
		(decision_id, project, gate, ref, from_hash, to_hash, outcome, reason,
		 commit_hash, summary, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.DecisionID,
		record.Project,
		record.Gate,
		record.Ref,
		record.FromHash,
		record.ToHash,
		record.Outcome,
		record.Reason,
		record.Commit,
		record.Summary,
		record.Message,
		record.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert decision record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	record.ID = id

	return id, nil
}

const decisionColumns = `id, decision_id, project, gate, ref, from_hash, to_hash, outcome,
		       reason, commit_hash, summary, message, created_at`

// GetLatestDecision returns the most recent decision for a project
func (h *History) GetLatestDecision(ctx context.Context, project string) (*DecisionRecord, error) {
	row := h.db.QueryRowContext(ctx, `
		SELECT `+decisionColumns+`
		FROM decisions
		WHERE project = ?
		ORDER BY id DESC
		LIMIT 1
	`, project)

	record, err := scanDecisionRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest decision: %w", err)
	}

	return record, nil
}

// GetDecisionHistory returns the most recent decisions for a project, newest first
func (h *History) GetDecisionHistory(ctx context.Context, project string, limit int) ([]DecisionRecord, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT `+decisionColumns+`
		FROM decisions
		WHERE project = ?
		ORDER BY id DESC
		LIMIT ?
	`, project, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query decision history: %w", err)
	}
	defer rows.Close()

	records := []DecisionRecord{}
	for rows.Next() {
		record, err := scanDecisionRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan decision record: %w", err)
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

// GetAllProjectsStatus returns the latest decision for each project
func (h *History) GetAllProjectsStatus(ctx context.Context) (map[string]*DecisionRecord, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT `+decisionColumns+`
		FROM decisions
		WHERE id IN (SELECT MAX(id) FROM decisions GROUP BY project)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query all projects status: %w", err)
	}
	defer rows.Close()

	result := make(map[string]*DecisionRecord)
	for rows.Next() {
		record, err := scanDecisionRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan decision record: %w", err)
		}
		result[record.Project] = record
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return result, nil
}

// scanner is an interface that both *sql.Row and *sql.Rows implement
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanDecisionRecord scans a database row into a DecisionRecord
func scanDecisionRecord(s scanner) (*DecisionRecord, error) {
	var record DecisionRecord
	var createdAtStr string

	err := s.Scan(
		&record.ID,
		&record.DecisionID,
		&record.Project,
		&record.Gate,
		&record.Ref,
		&record.FromHash,
		&record.ToHash,
		&record.Outcome,
		&record.Reason,
		&record.Commit,
		&record.Summary,
		&record.Message,
		&createdAtStr,
	)
	if err != nil {
		return nil, err
	}

	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at timestamp: %w", err)
	}
	record.CreatedAt = createdAt

	return &record, nil
}

func stringPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
