package repositoryimpl

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/kazz187/agileboard/internal/task"
	"github.com/kazz187/agileboard/pkg/cerr"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id                TEXT PRIMARY KEY,
	owner_id          TEXT NOT NULL,
	title             TEXT NOT NULL,
	description       TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL,
	label             TEXT NOT NULL DEFAULT '',
	priority          TEXT NOT NULL DEFAULT '',
	due_date          TEXT,
	image_url         TEXT NOT NULL DEFAULT '',
	sort_order        REAL NOT NULL DEFAULT 0,
	completed         INTEGER NOT NULL DEFAULT 0,
	completion_reason TEXT NOT NULL DEFAULT '',
	selected          INTEGER NOT NULL DEFAULT 0,
	is_archived       INTEGER NOT NULL DEFAULT 0,
	created_at        TEXT NOT NULL,
	updated_at        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS tasks_owner ON tasks (owner_id, sort_order);
`

const columns = `id, owner_id, title, description, status, label, priority, due_date, image_url,
	sort_order, completed, completion_reason, selected, is_archived, created_at, updated_at`

// SQLiteRepository keeps task rows in a single SQLite table. Timestamps are
// stored as RFC 3339 text.
type SQLiteRepository struct {
	db *sql.DB
}

var _ task.Repository = (*SQLiteRepository)(nil)

// NewSQLiteRepository opens (or creates) the database at dbPath. The caller
// must call Close.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error { return r.db.Close() }

func (r *SQLiteRepository) Create(ctx context.Context, t *task.Task) error {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE id = ?`, t.ID).Scan(&n); err != nil {
		return dbError("task", err)
	}
	if n > 0 {
		return cerr.NewError(cerr.AlreadyExists, "task already exists", nil)
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO tasks (`+columns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.OwnerID, t.Title, t.Description, string(t.Status), t.Label, string(t.Priority),
		nullTime(t.DueDate), t.ImageURL, t.Order, t.Completed, string(t.CompletionReason),
		t.Selected, t.Archived, formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		return dbError("task", err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*task.Task, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cerr.NewError(cerr.NotFound, "task not found", nil)
	}
	if err != nil {
		return nil, dbError("task", err)
	}
	return t, nil
}

func (r *SQLiteRepository) ListByOwner(ctx context.Context, ownerID string) ([]*task.Task, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+columns+` FROM tasks WHERE owner_id = ?`, ownerID)
	if err != nil {
		return nil, dbError("tasks", err)
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, dbError("tasks", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("tasks", err)
	}
	task.SortByOrder(tasks)
	return tasks, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, t *task.Task) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET
			title=?, description=?, status=?, label=?, priority=?, due_date=?, image_url=?,
			sort_order=?, completed=?, completion_reason=?, selected=?, is_archived=?, updated_at=?
		WHERE id=?`,
		t.Title, t.Description, string(t.Status), t.Label, string(t.Priority),
		nullTime(t.DueDate), t.ImageURL, t.Order, t.Completed, string(t.CompletionReason),
		t.Selected, t.Archived, formatTime(t.UpdatedAt),
		t.ID,
	)
	if err != nil {
		return dbError("task", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbError("task", err)
	}
	if n == 0 {
		return cerr.NewError(cerr.NotFound, "task not found", nil)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return dbError("task", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbError("task", err)
	}
	if n == 0 {
		return cerr.NewError(cerr.NotFound, "task not found", nil)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*task.Task, error) {
	var (
		t                            task.Task
		status, priority, reason     string
		dueDate                      sql.NullString
		createdAt, updatedAt         string
		completed, selected, archive bool
	)
	err := s.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Description, &status, &t.Label, &priority,
		&dueDate, &t.ImageURL, &t.Order, &completed, &reason, &selected, &archive, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = task.Status(status)
	t.Priority = task.Priority(priority)
	t.CompletionReason = task.CompletionReason(reason)
	t.Completed, t.Selected, t.Archived = completed, selected, archive
	if dueDate.Valid {
		d, err := parseTime(dueDate.String)
		if err != nil {
			return nil, err
		}
		t.DueDate = &d
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func dbError(target string, err error) error {
	return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("sqlite %s: %w", target, err))
}
