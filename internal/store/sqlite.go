// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/pdiddy/medpaper/internal/a2a"
	"github.com/pdiddy/medpaper/pkg/types"
)

// SQLite stores tasks and audit records in a single SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at cfg.Path and creates the
// schema if it does not exist.
func OpenSQLite(cfg types.StoreConfig) (*SQLite, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("opening database: empty path")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS paper_tasks (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			paper_type TEXT NOT NULL,
			status TEXT NOT NULL,
			current_step TEXT,
			revision_round INTEGER NOT NULL DEFAULT 0,
			data TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_paper_tasks_user ON paper_tasks(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_paper_tasks_status ON paper_tasks(status)`,
		`CREATE TABLE IF NOT EXISTS paper_task_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id TEXT NOT NULL REFERENCES paper_tasks(id),
			message_id TEXT NOT NULL,
			correlation_id TEXT NOT NULL,
			sender TEXT NOT NULL,
			receiver TEXT NOT NULL,
			intent TEXT NOT NULL,
			status TEXT NOT NULL,
			attempt INTEGER NOT NULL,
			input TEXT,
			output TEXT,
			error TEXT,
			latency_ms INTEGER NOT NULL DEFAULT 0,
			tokens_in INTEGER NOT NULL DEFAULT 0,
			tokens_out INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_paper_task_messages_task ON paper_task_messages(task_id)`,
		// The audit trail is append-only.
		`CREATE TRIGGER IF NOT EXISTS paper_task_messages_no_update
			BEFORE UPDATE ON paper_task_messages BEGIN
				SELECT RAISE(ABORT, 'paper_task_messages is append-only');
			END`,
		`CREATE TRIGGER IF NOT EXISTS paper_task_messages_no_delete
			BEFORE DELETE ON paper_task_messages BEGIN
				SELECT RAISE(ABORT, 'paper_task_messages is append-only');
			END`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// SaveTask inserts or replaces the task row.
func (s *SQLite) SaveTask(ctx context.Context, t *types.MedicalPaperTask) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encoding task %s: %w", t.ID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO paper_tasks (id, user_id, title, paper_type, status, current_step, revision_round, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			user_id=excluded.user_id, title=excluded.title, paper_type=excluded.paper_type,
			status=excluded.status, current_step=excluded.current_step,
			revision_round=excluded.revision_round, data=excluded.data,
			updated_at=excluded.updated_at`,
		t.ID, t.UserID, t.Title, string(t.PaperType), string(t.Status), t.CurrentStep,
		t.RevisionRound, string(data), formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("saving task %s: %w", t.ID, err)
	}
	return nil
}

// LoadTask returns the task with the given id or ErrNotFound.
func (s *SQLite) LoadTask(ctx context.Context, id string) (*types.MedicalPaperTask, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM paper_tasks WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading task %s: %w", id, err)
	}
	var t types.MedicalPaperTask
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, fmt.Errorf("decoding task %s: %w", id, err)
	}
	return &t, nil
}

// ListTasks returns tasks matching opts, newest first.
func (s *SQLite) ListTasks(ctx context.Context, opts ListOptions) ([]types.MedicalPaperTask, error) {
	var (
		where []string
		args  []any
	)
	if opts.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, opts.UserID)
	}
	if opts.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(opts.Status))
	}
	query := `SELECT data FROM paper_tasks`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	var tasks []types.MedicalPaperTask
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		var t types.MedicalPaperTask
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, fmt.Errorf("decoding task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// AppendMessage inserts one audit row merging req and resp. It returns
// ErrNotFound when the task has not been saved.
func (s *SQLite) AppendMessage(ctx context.Context, taskID string, req, resp a2a.Message, attempt int) error {
	rec := NewRecord(taskID, req, resp, attempt)

	var errJSON sql.NullString
	if rec.Error != nil {
		data, err := json.Marshal(rec.Error)
		if err != nil {
			return fmt.Errorf("encoding message error: %w", err)
		}
		errJSON = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO paper_task_messages
			(task_id, message_id, correlation_id, sender, receiver, intent, status, attempt,
			 input, output, error, latency_ms, tokens_in, tokens_out, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TaskID, rec.MessageID, rec.CorrelationID, rec.Sender, rec.Receiver, rec.Intent,
		rec.Status, rec.Attempt, nullJSON(rec.Input), nullJSON(rec.Output), errJSON,
		rec.Metrics.LatencyMs, rec.Metrics.TokensIn, rec.Metrics.TokensOut, formatTime(rec.CreatedAt),
	)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
		return fmt.Errorf("appending message: %w: %s", ErrNotFound, taskID)
	}
	if err != nil {
		return fmt.Errorf("appending message for task %s: %w", taskID, err)
	}
	return nil
}

// ListMessages returns the task's audit records in insertion order.
func (s *SQLite) ListMessages(ctx context.Context, taskID string) ([]types.PaperTaskMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task_id, message_id, correlation_id, sender, receiver, intent, status, attempt,
			input, output, error, latency_ms, tokens_in, tokens_out, created_at
		 FROM paper_task_messages WHERE task_id = ? ORDER BY id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("listing messages for task %s: %w", taskID, err)
	}
	defer rows.Close()

	var msgs []types.PaperTaskMessage
	for rows.Next() {
		var (
			m                    types.PaperTaskMessage
			input, output, errJS sql.NullString
			created              string
		)
		if err := rows.Scan(&m.ID, &m.TaskID, &m.MessageID, &m.CorrelationID, &m.Sender, &m.Receiver,
			&m.Intent, &m.Status, &m.Attempt, &input, &output, &errJS,
			&m.Metrics.LatencyMs, &m.Metrics.TokensIn, &m.Metrics.TokensOut, &created); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		if input.Valid {
			m.Input = json.RawMessage(input.String)
		}
		if output.Valid {
			m.Output = json.RawMessage(output.String)
		}
		if errJS.Valid {
			m.Error = &types.MessageError{}
			if err := json.Unmarshal([]byte(errJS.String), m.Error); err != nil {
				return nil, fmt.Errorf("decoding message error: %w", err)
			}
		}
		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func nullJSON(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
