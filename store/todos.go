package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Todo is a stored todo item.
type Todo struct {
	ID          string
	Done        bool
	Description string
	Owner       string
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TodoQuery narrows and orders List.
type TodoQuery struct {
	// Owner restricts results to one owner. Empty matches every owner.
	Owner string

	// Description matches todos whose description contains it,
	// ignoring case.
	Description string

	// Done filters on completion when set.
	Done *bool

	// Sort lists field names; a leading "-" sorts descending. Unknown
	// fields are ignored.
	Sort []string
}

// sortColumns maps JSON field names to columns.
var sortColumns = map[string]string{
	"id":          "id",
	"done":        "done",
	"description": "description",
	"owner":       "owner",
	"createdat":   "created_at",
	"updatedat":   "updated_at",
	"version":     "version",
}

func orderBy(fields []string) string {
	var parts []string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		dir := "ASC"
		if strings.HasPrefix(f, "-") {
			dir = "DESC"
			f = f[1:]
		}
		col, ok := sortColumns[strings.ToLower(f)]
		if !ok {
			continue
		}
		parts = append(parts, col+" "+dir)
	}
	parts = append(parts, "created_at ASC", "id ASC")
	return strings.Join(parts, ", ")
}

// Todos is the todo repository.
type Todos struct {
	db *DB
}

const todoColumns = `id, done, description, owner, version, created_at, updated_at`

func scanTodo(row rowScanner) (*Todo, error) {
	var (
		t                Todo
		done             int64
		created, updated int64
	)
	if err := row.Scan(&t.ID, &done, &t.Description, &t.Owner, &t.Version, &created, &updated); err != nil {
		return nil, err
	}
	t.Done = done != 0
	t.CreatedAt = fromMillis(created)
	t.UpdatedAt = fromMillis(updated)
	return &t, nil
}

// List returns the todos matching q.
func (s *Todos) List(ctx context.Context, q TodoQuery) ([]*Todo, error) {
	var (
		where []string
		args  []any
	)
	if q.Owner != "" {
		where = append(where, "owner = ?")
		args = append(args, q.Owner)
	}
	if q.Description != "" {
		where = append(where, "instr(lower(description), lower(?)) > 0")
		args = append(args, q.Description)
	}
	if q.Done != nil {
		where = append(where, "done = ?")
		args = append(args, boolInt(*q.Done))
	}
	query := `SELECT ` + todoColumns + ` FROM todos`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY ` + orderBy(q.Sort)

	rows, err := s.db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list todos: %w", err)
	}
	defer rows.Close()

	todos := []*Todo{}
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan todo: %w", err)
		}
		todos = append(todos, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list todos: %w", err)
	}
	return todos, nil
}

// Get returns a todo by id. A non-empty owner scopes the lookup; a todo
// owned by someone else is reported as not found.
func (s *Todos) Get(ctx context.Context, id, owner string) (*Todo, error) {
	query := `SELECT ` + todoColumns + ` FROM todos WHERE id = ?`
	args := []any{id}
	if owner != "" {
		query += ` AND owner = ?`
		args = append(args, owner)
	}
	t, err := scanTodo(s.db.sql.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: todo %q", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get todo: %w", err)
	}
	return t, nil
}

// Create inserts t. The caller assigns t.ID.
func (s *Todos) Create(ctx context.Context, t *Todo) error {
	now := s.db.timestamp()
	_, err := s.db.sql.ExecContext(ctx, `INSERT INTO todos (`+todoColumns+`) VALUES (?, ?, ?, ?, 0, ?, ?)`,
		t.ID, boolInt(t.Done), t.Description, t.Owner, now, now)
	if err != nil {
		return fmt.Errorf("store: insert todo: %w", translate(err))
	}
	t.Version = 0
	t.CreatedAt = fromMillis(now)
	t.UpdatedAt = t.CreatedAt
	return nil
}

// Update stores the done flag and description of t when t.Version
// matches the stored version.
func (s *Todos) Update(ctx context.Context, t *Todo) error {
	now := s.db.timestamp()
	err := s.db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE todos SET done = ?, description = ?,
			version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
			boolInt(t.Done), t.Description, now, t.ID, t.Version)
		if err != nil {
			return fmt.Errorf("store: update todo: %w", err)
		}
		return checkAffected(ctx, tx, res, "todos", t.ID)
	})
	if err != nil {
		return err
	}
	t.Version++
	t.UpdatedAt = fromMillis(now)
	return nil
}

// Delete removes a todo. A non-empty owner scopes the delete.
func (s *Todos) Delete(ctx context.Context, id, owner string) error {
	query := `DELETE FROM todos WHERE id = ?`
	args := []any{id}
	if owner != "" {
		query += ` AND owner = ?`
		args = append(args, owner)
	}
	res, err := s.db.sql.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("store: delete todo: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete todo: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: todo %q", ErrNotFound, id)
	}
	return nil
}

// Clear removes every todo and returns how many were removed.
func (s *Todos) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.sql.ExecContext(ctx, `DELETE FROM todos`)
	if err != nil {
		return 0, fmt.Errorf("store: clear todos: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: clear todos: %w", err)
	}
	return n, nil
}
