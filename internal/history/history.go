// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package history is the SQLite run registry. Every submitted run gets a
// row at submit time and a final update on its terminal transition, so
// runs survive daemon restarts and queue pruning. Recording is best
// effort from the runner's side; reads serve the history command and the
// API for runs no longer held in memory.
package history

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kevinjin420/jaseci-llmdocs/internal/clock"
	"github.com/kevinjin420/jaseci-llmdocs/internal/log"
	"github.com/kevinjin420/jaseci-llmdocs/internal/runner"
	"github.com/kevinjin420/jaseci-llmdocs/pkg/errors"
	"github.com/kevinjin420/jaseci-llmdocs/pkg/llm"
)

var _ runner.HistoryRecorder = (*Registry)(nil)

// Config contains SQLite connection configuration.
type Config struct {
	// Path is the database file path.
	Path string

	// WAL enables Write-Ahead Logging mode for concurrent reads.
	WAL bool
}

// Registry is the SQLite-backed run registry.
type Registry struct {
	db     *sql.DB
	clock  clock.Clock
	logger *slog.Logger
}

// Entry is one registry row.
type Entry struct {
	ID               string         `json:"id"`
	GroupID          string         `json:"group_id"`
	Model            string         `json:"model"`
	Variant          string         `json:"variant"`
	SuiteName        string         `json:"suite_name"`
	Temperature      float64        `json:"temperature"`
	Status           string         `json:"status"`
	Error            string         `json:"error,omitempty"`
	ArtifactID       string         `json:"artifact_id,omitempty"`
	TotalBatches     int            `json:"total_batches"`
	CompletedBatches int            `json:"completed_batches"`
	FailedBatches    int            `json:"failed_batches"`
	TotalTests       int            `json:"total_tests"`
	CollectedTests   int            `json:"collected_tests"`
	Usage            llm.TokenUsage `json:"usage"`
	CreatedAt        time.Time      `json:"created_at"`
	StartedAt        *time.Time     `json:"started_at,omitempty"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status string
	Model  string
	Limit  int
	Offset int
}

// New opens (creating if needed) the registry database at cfg.Path.
func New(cfg Config, clk clock.Clock, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, &errors.StoreError{Op: "open history db", Key: cfg.Path, Cause: err}
	}

	// SQLite serializes writes; a single connection avoids lock churn.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &errors.StoreError{Op: "connect history db", Key: cfg.Path, Cause: err}
	}

	r := &Registry{
		db:     db,
		clock:  clk,
		logger: log.WithComponent(logger, "history"),
	}

	if err := r.configurePragmas(ctx, cfg.WAL); err != nil {
		db.Close()
		return nil, err
	}
	if err := r.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	r.logger.Debug("run registry opened", slog.String("path", cfg.Path))
	return r, nil
}

func (r *Registry) configurePragmas(ctx context.Context, enableWAL bool) error {
	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA auto_vacuum=INCREMENTAL",
		"PRAGMA synchronous=NORMAL",
	}
	if enableWAL {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}

	for _, pragma := range pragmas {
		if _, err := r.db.ExecContext(ctx, pragma); err != nil {
			return &errors.StoreError{Op: "configure pragma", Key: pragma, Cause: err}
		}
	}
	return nil
}

func (r *Registry) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			group_id TEXT NOT NULL,
			model TEXT NOT NULL,
			variant TEXT NOT NULL,
			suite_name TEXT NOT NULL,
			temperature REAL NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			artifact_id TEXT,
			total_batches INTEGER DEFAULT 0,
			completed_batches INTEGER DEFAULT 0,
			failed_batches INTEGER DEFAULT 0,
			total_tests INTEGER DEFAULT 0,
			collected_tests INTEGER DEFAULT 0,
			input_tokens INTEGER DEFAULT 0,
			output_tokens INTEGER DEFAULT 0,
			total_tokens INTEGER DEFAULT 0,
			started_at TEXT,
			completed_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_model ON runs(model)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.ExecContext(ctx, migration); err != nil {
			return &errors.StoreError{Op: "migrate history db", Cause: err}
		}
	}
	return nil
}

// RecordSubmit inserts the initial row for a freshly submitted run.
func (r *Registry) RecordSubmit(ctx context.Context, snap *runner.RunSnapshot) error {
	query := `
		INSERT INTO runs (id, group_id, model, variant, suite_name, temperature, status,
			error, artifact_id, total_batches, completed_batches, failed_batches,
			total_tests, collected_tests, input_tokens, output_tokens, total_tokens,
			started_at, completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := r.clock.Now().UTC()
	_, err := r.db.ExecContext(ctx, query,
		snap.ID, snap.GroupID, snap.Model, snap.Variant, snap.SuiteName,
		snap.Temperature, string(snap.Status),
		nullString(snap.Error), nullString(snap.ArtifactID),
		snap.Progress.TotalBatches, snap.Progress.CompletedBatches,
		snap.Progress.FailedBatches, snap.Progress.TotalTests,
		snap.Progress.CollectedTests,
		snap.Usage.InputTokens, snap.Usage.OutputTokens, snap.Usage.TotalTokens,
		formatTime(snap.StartedAt), formatTime(snap.CompletedAt),
		snap.CreatedAt.UTC().Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return &errors.StoreError{Op: "record submit", Key: snap.ID, Cause: err}
	}
	return nil
}

// RecordTerminal finalizes a run's row. The write is an upsert so a run
// whose submit row was lost still lands complete in the registry.
func (r *Registry) RecordTerminal(ctx context.Context, snap *runner.RunSnapshot) error {
	query := `
		INSERT INTO runs (id, group_id, model, variant, suite_name, temperature, status,
			error, artifact_id, total_batches, completed_batches, failed_batches,
			total_tests, collected_tests, input_tokens, output_tokens, total_tokens,
			started_at, completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			artifact_id = excluded.artifact_id,
			total_batches = excluded.total_batches,
			completed_batches = excluded.completed_batches,
			failed_batches = excluded.failed_batches,
			total_tests = excluded.total_tests,
			collected_tests = excluded.collected_tests,
			input_tokens = excluded.input_tokens,
			output_tokens = excluded.output_tokens,
			total_tokens = excluded.total_tokens,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			updated_at = excluded.updated_at
	`

	now := r.clock.Now().UTC()
	_, err := r.db.ExecContext(ctx, query,
		snap.ID, snap.GroupID, snap.Model, snap.Variant, snap.SuiteName,
		snap.Temperature, string(snap.Status),
		nullString(snap.Error), nullString(snap.ArtifactID),
		snap.Progress.TotalBatches, snap.Progress.CompletedBatches,
		snap.Progress.FailedBatches, snap.Progress.TotalTests,
		snap.Progress.CollectedTests,
		snap.Usage.InputTokens, snap.Usage.OutputTokens, snap.Usage.TotalTokens,
		formatTime(snap.StartedAt), formatTime(snap.CompletedAt),
		snap.CreatedAt.UTC().Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return &errors.StoreError{Op: "record terminal", Key: snap.ID, Cause: err}
	}

	r.logger.Debug("run recorded",
		slog.String(log.RunIDKey, snap.ID),
		slog.String("status", string(snap.Status)))
	return nil
}

const entryColumns = `id, group_id, model, variant, suite_name, temperature, status,
	error, artifact_id, total_batches, completed_batches, failed_batches,
	total_tests, collected_tests, input_tokens, output_tokens, total_tokens,
	started_at, completed_at, created_at, updated_at`

// Get retrieves one registry row by run id.
func (r *Registry) Get(ctx context.Context, id string) (*Entry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM runs WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, &errors.NotFoundError{Resource: "run", ID: id}
	}
	if err != nil {
		return nil, &errors.StoreError{Op: "get run", Key: id, Cause: err}
	}
	return entry, nil
}

// List returns registry rows matching the filter, newest first.
func (r *Registry) List(ctx context.Context, filter Filter) ([]*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM runs WHERE 1=1`
	args := []any{}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.Model != "" {
		query += " AND model = ?"
		args = append(args, filter.Model)
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &errors.StoreError{Op: "list runs", Cause: err}
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, &errors.StoreError{Op: "list runs", Cause: err}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, &errors.StoreError{Op: "list runs", Cause: err}
	}
	return entries, nil
}

// Close closes the database connection.
func (r *Registry) Close() error {
	return r.db.Close()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var entry Entry
	var errStr, artifactID sql.NullString
	var startedAt, completedAt, createdAt, updatedAt sql.NullString

	err := row.Scan(
		&entry.ID, &entry.GroupID, &entry.Model, &entry.Variant,
		&entry.SuiteName, &entry.Temperature, &entry.Status,
		&errStr, &artifactID,
		&entry.TotalBatches, &entry.CompletedBatches, &entry.FailedBatches,
		&entry.TotalTests, &entry.CollectedTests,
		&entry.Usage.InputTokens, &entry.Usage.OutputTokens, &entry.Usage.TotalTokens,
		&startedAt, &completedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if errStr.Valid {
		entry.Error = errStr.String
	}
	if artifactID.Valid {
		entry.ArtifactID = artifactID.String
	}
	if startedAt.Valid {
		t, _ := time.Parse(time.RFC3339, startedAt.String)
		entry.StartedAt = &t
	}
	if completedAt.Valid {
		t, _ := time.Parse(time.RFC3339, completedAt.String)
		entry.CompletedAt = &t
	}
	if createdAt.Valid {
		entry.CreatedAt, _ = time.Parse(time.RFC3339, createdAt.String)
	}
	if updatedAt.Valid {
		entry.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt.String)
	}

	return &entry, nil
}

// formatTime converts a *time.Time to an RFC3339 string or nil.
func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// nullString returns nil if the string is empty, otherwise the string.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
