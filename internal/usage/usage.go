// Package usage persists per-turn token accounting to a local SQLite
// ledger and formats it for display. The provider reports usage on its
// event stream; callers that want history append it here.
package usage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// Record is the usage accounting for a single completed turn.
type Record struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	Model          string    `json:"model"`
	InputTokens    int64     `json:"input_tokens"`
	OutputTokens   int64     `json:"output_tokens"`
	ContextPercent float64   `json:"context_percent"`
	StopReason     string    `json:"stop_reason"`
	DurationMs     int64     `json:"duration_ms"`
}

// Total returns the total token count for the record.
func (r *Record) Total() int64 {
	return r.InputTokens + r.OutputTokens
}

// Totals aggregates records over a window.
type Totals struct {
	Turns        int64 `json:"turns"`
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Total returns the total token count across the window.
func (t *Totals) Total() int64 {
	return t.InputTokens + t.OutputTokens
}

// ModelTotals aggregates records for one model.
type ModelTotals struct {
	Model string `json:"model"`
	Totals
}

// Store is a SQLite-backed usage ledger.
type Store struct {
	db *sql.DB
}

// Open opens the ledger at path, creating the file and its parent
// directory if needed. An empty path opens an in-memory ledger.
func Open(path string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	} else if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create usage directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open usage ledger: %w", err)
	}
	// Each new in-memory connection is a separate empty database.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS turns (
			id TEXT PRIMARY KEY,
			created_at DATETIME NOT NULL,
			model TEXT NOT NULL,
			input_tokens INTEGER NOT NULL,
			output_tokens INTEGER NOT NULL,
			context_percent REAL NOT NULL,
			stop_reason TEXT NOT NULL,
			duration_ms INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create turns table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_turns_created ON turns(created_at)",
		"CREATE INDEX IF NOT EXISTS idx_turns_model ON turns(model)",
	}
	for _, idx := range indexes {
		if _, err := s.db.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// Close closes the ledger.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append records one turn. A missing ID or timestamp is filled in.
func (s *Store) Append(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turns (id, created_at, model, input_tokens, output_tokens, context_percent, stop_reason, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.CreatedAt.UTC(),
		rec.Model,
		rec.InputTokens,
		rec.OutputTokens,
		rec.ContextPercent,
		rec.StopReason,
		rec.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to append usage record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, model, input_tokens, output_tokens, context_percent, stop_reason, duration_ms
		FROM turns
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent usage: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.ID,
			&rec.CreatedAt,
			&rec.Model,
			&rec.InputTokens,
			&rec.OutputTokens,
			&rec.ContextPercent,
			&rec.StopReason,
			&rec.DurationMs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// TotalsSince aggregates all records created at or after since.
func (s *Store) TotalsSince(ctx context.Context, since time.Time) (*Totals, error) {
	var t Totals
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0)
		FROM turns
		WHERE created_at >= ?
	`, since.UTC()).Scan(&t.Turns, &t.InputTokens, &t.OutputTokens)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate usage: %w", err)
	}
	return &t, nil
}

// TotalsByModel aggregates all records per model, busiest model first.
func (s *Store) TotalsByModel(ctx context.Context) ([]ModelTotals, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT model, COUNT(*), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0)
		FROM turns
		GROUP BY model
		ORDER BY COUNT(*) DESC, model
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate usage by model: %w", err)
	}
	defer rows.Close()

	var totals []ModelTotals
	for rows.Next() {
		var mt ModelTotals
		if err := rows.Scan(&mt.Model, &mt.Turns, &mt.InputTokens, &mt.OutputTokens); err != nil {
			return nil, fmt.Errorf("failed to scan model totals: %w", err)
		}
		totals = append(totals, mt)
	}
	return totals, rows.Err()
}
