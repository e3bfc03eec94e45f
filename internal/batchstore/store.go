package batchstore

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"lightmapper/internal/config"
	"lightmapper/internal/sqlitedb"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrNotFound is returned when a batch id is unknown.
var ErrNotFound = errors.New("batch not found")

// Store manages batch persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open initializes or connects to the batch database and fails batches left
// running by an interrupted process.
func Open(cfg *config.Config) (*Store, error) {
	ctx := context.Background()
	path := cfg.BatchDBPath()
	db, err := sqlitedb.Open(ctx, path, sqlitedb.Schema{
		SQL:       schemaSQL,
		Version:   schemaVersion,
		ResetHint: "delete " + path,
	})
	if err != nil {
		return nil, err
	}
	store := &Store{db: db, path: path, now: time.Now}
	if _, err := store.failInterrupted(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// NewBatch inserts a pending batch for the given table description.
func (s *Store) NewBatch(ctx context.Context, tablePath string) (*Batch, error) {
	tablePath = strings.TrimSpace(tablePath)
	if tablePath == "" {
		return nil, errors.New("table path is required")
	}
	id := uuid.NewString()
	ts := sqlitedb.FormatTime(s.now())
	if _, err := sqlitedb.Exec(ctx, s.db,
		`INSERT INTO batches (id, table_path, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, tablePath, StatusPending, ts, ts,
	); err != nil {
		return nil, fmt.Errorf("insert batch: %w", err)
	}
	return s.Get(ctx, id)
}

// Get loads a batch by id.
func (s *Store) Get(ctx context.Context, id string) (*Batch, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, table_path, status, stage, error_message, created_at, updated_at, finished_at
         FROM batches WHERE id = ?`, id)
	batch, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return batch, err
}

// List returns the most recent batches, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*Batch, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, table_path, status, stage, error_message, created_at, updated_at, finished_at
         FROM batches ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()
	var out []*Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, batch)
	}
	return out, rows.Err()
}

// SetStatus moves a batch to a new status and stage. Terminal statuses stamp
// finished_at; errMsg is stored for failed or cancelled batches.
func (s *Store) SetStatus(ctx context.Context, id string, status Status, stage, errMsg string) error {
	now := sqlitedb.FormatTime(s.now())
	var finished any
	if status.IsTerminal() {
		finished = now
	}
	res, err := sqlitedb.Exec(ctx, s.db,
		`UPDATE batches SET status = ?, stage = ?, error_message = ?, updated_at = ?, finished_at = ? WHERE id = ?`,
		status, nullableString(stage), nullableString(errMsg), now, finished, id,
	)
	if err != nil {
		return fmt.Errorf("update batch status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// StartStage records a running stage for a bake group and returns its row id.
func (s *Store) StartStage(ctx context.Context, batchID, group, stage, requestID string) (int64, error) {
	res, err := sqlitedb.Exec(ctx, s.db,
		`INSERT INTO stage_runs (batch_id, bake_group, stage, request_id, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		batchID, group, stage, requestID, StatusRunning, sqlitedb.FormatTime(s.now()),
	)
	if err != nil {
		return 0, fmt.Errorf("insert stage run: %w", err)
	}
	return res.LastInsertId()
}

// FinishStage closes a stage run with its counters and outcome.
func (s *Store) FinishStage(ctx context.Context, runID int64, status Status, counters map[string]int, errMsg string) error {
	var encoded any
	if len(counters) > 0 {
		data, err := json.Marshal(counters)
		if err != nil {
			return fmt.Errorf("marshal counters: %w", err)
		}
		encoded = string(data)
	}
	if _, err := sqlitedb.Exec(ctx, s.db,
		`UPDATE stage_runs SET status = ?, counters_json = ?, error_message = ?, finished_at = ? WHERE id = ?`,
		status, encoded, nullableString(errMsg), sqlitedb.FormatTime(s.now()), runID,
	); err != nil {
		return fmt.Errorf("update stage run: %w", err)
	}
	return nil
}

// StageRuns lists the stage runs of a batch in execution order.
func (s *Store) StageRuns(ctx context.Context, batchID string) ([]StageRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, batch_id, bake_group, stage, request_id, status, counters_json, error_message, started_at, finished_at
         FROM stage_runs WHERE batch_id = ? ORDER BY id`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list stage runs: %w", err)
	}
	defer rows.Close()
	var out []StageRun
	for rows.Next() {
		var (
			run                 StageRun
			status              string
			counters, errMsg    sql.NullString
			started, finishedAt sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.BatchID, &run.BakeGroup, &run.Stage, &run.RequestID, &status, &counters, &errMsg, &started, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan stage run: %w", err)
		}
		run.Status = Status(status)
		run.ErrorMessage = errMsg.String
		run.StartedAt = sqlitedb.ParseTime(started.String)
		run.FinishedAt = sqlitedb.ParseTime(finishedAt.String)
		if counters.Valid && counters.String != "" {
			if err := json.Unmarshal([]byte(counters.String), &run.Counters); err != nil {
				return nil, fmt.Errorf("decode counters: %w", err)
			}
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Remove deletes finished batches older than the cutoff and returns how many were removed.
func (s *Store) Remove(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := sqlitedb.Exec(ctx, s.db,
		`DELETE FROM batches WHERE finished_at IS NOT NULL AND finished_at < ?`,
		sqlitedb.FormatTime(olderThan),
	)
	if err != nil {
		return 0, fmt.Errorf("remove batches: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) failInterrupted(ctx context.Context) (int64, error) {
	placeholders := make([]string, len(processingStatuses))
	args := make([]any, 0, len(processingStatuses)+3)
	now := sqlitedb.FormatTime(s.now())
	args = append(args, StatusFailed, InterruptedReason, now, now)
	for i, status := range processingStatuses {
		placeholders[i] = "?"
		args = append(args, status)
	}
	res, err := sqlitedb.Exec(ctx, s.db,
		`UPDATE batches SET status = ?, error_message = ?, updated_at = ?, finished_at = ?
         WHERE status IN (`+strings.Join(placeholders, ",")+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted batches: %w", err)
	}
	if _, err := sqlitedb.Exec(ctx, s.db,
		`UPDATE stage_runs SET status = ?, error_message = ?, finished_at = ? WHERE status = ?`,
		StatusFailed, InterruptedReason, now, StatusRunning,
	); err != nil {
		return 0, fmt.Errorf("fail interrupted stage runs: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (*Batch, error) {
	var (
		batch                      Batch
		status                     string
		stage, errMsg              sql.NullString
		created, updated, finished sql.NullString
	)
	if err := row.Scan(&batch.ID, &batch.TablePath, &status, &stage, &errMsg, &created, &updated, &finished); err != nil {
		return nil, err
	}
	batch.Status = Status(status)
	batch.Stage = stage.String
	batch.ErrorMessage = errMsg.String
	batch.CreatedAt = sqlitedb.ParseTime(created.String)
	batch.UpdatedAt = sqlitedb.ParseTime(updated.String)
	batch.FinishedAt = sqlitedb.ParseTime(finished.String)
	return &batch, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
