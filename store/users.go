package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonwraymond/todoauth/auth"
)

// User is a stored account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Email        string
	FirstName    string
	LastName     string
	Roles        []auth.Role
	Enabled      bool
	Locked       bool
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CreatedBy    string
	UpdatedBy    string
}

// FullName joins the first and last names.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Details converts the user to the form the credential authenticator
// consumes.
func (u *User) Details() *auth.UserDetails {
	return &auth.UserDetails{
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Authorities:  auth.RoleStrings(u.Roles),
		Disabled:     !u.Enabled,
		Locked:       u.Locked,
	}
}

// UserFilter narrows List. Empty fields match everything.
type UserFilter struct {
	Username string
	Email    string
}

// Users is the user repository.
type Users struct {
	db *DB
}

const userColumns = `u.id, u.username, u.password, u.email, u.first_name, u.last_name,
	u.enabled, u.locked, u.version, u.created_at, u.updated_at, u.created_by, u.updated_by,
	COALESCE((SELECT group_concat(r.name, ',') FROM users_roles ur JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = u.id), '')`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var (
		u                User
		created, updated int64
		roles            string
		enabled, locked  int64
	)
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email, &u.FirstName, &u.LastName,
		&enabled, &locked, &u.Version, &created, &updated, &u.CreatedBy, &u.UpdatedBy, &roles)
	if err != nil {
		return nil, err
	}
	u.Enabled = enabled != 0
	u.Locked = locked != 0
	u.CreatedAt = fromMillis(created)
	u.UpdatedAt = fromMillis(updated)
	u.Roles = parseRoleList(roles)
	return &u, nil
}

func parseRoleList(s string) []auth.Role {
	if s == "" {
		return []auth.Role{}
	}
	roles := auth.ParseRoles(strings.Split(s, ","))
	out := roles[:0]
	for _, r := range roles {
		if r.Known() {
			out = append(out, r)
		}
	}
	return sortedRoles(out)
}

func (s *Users) getBy(ctx context.Context, column, value string) (*User, error) {
	q := `SELECT ` + userColumns + ` FROM users u WHERE u.` + column + ` = ?`
	u, err := scanUser(s.db.sql.QueryRowContext(ctx, q, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s=%q", ErrNotFound, column, value)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get user: %w", err)
	}
	return u, nil
}

// GetByUsername returns the user with the given username, ignoring case.
func (s *Users) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.getBy(ctx, "username", username)
}

// GetByEmail returns the user with the given e-mail, ignoring case.
func (s *Users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.getBy(ctx, "email", email)
}

// FindByUsername implements auth.UserLookup.
func (s *Users) FindByUsername(ctx context.Context, username string) (*auth.UserDetails, error) {
	u, err := s.GetByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", auth.ErrUserNotFound, username)
	}
	if err != nil {
		return nil, err
	}
	return u.Details(), nil
}

// ExistsByUsername reports whether a username is taken.
func (s *Users) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, "username", username)
}

// ExistsByEmail reports whether an e-mail is in use.
func (s *Users) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, "email", email)
}

func (s *Users) exists(ctx context.Context, column, value string) (bool, error) {
	var n int
	err := s.db.sql.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE `+column+` = ?`, value).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("store: exists: %w", err)
	}
	return n > 0, nil
}

// List returns users matching the filter ordered by username.
func (s *Users) List(ctx context.Context, f UserFilter) ([]*User, error) {
	var (
		where []string
		args  []any
	)
	if f.Username != "" {
		where = append(where, "u.username = ?")
		args = append(args, f.Username)
	}
	if f.Email != "" {
		where = append(where, "u.email = ?")
		args = append(args, f.Email)
	}
	q := `SELECT ` + userColumns + ` FROM users u`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY u.username`

	rows, err := s.db.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list users: %w", err)
	}
	defer rows.Close()

	users := []*User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list users: %w", err)
	}
	return users, nil
}

// Create inserts u with the given catalog roles. ID, Version and the
// audit timestamps are set on u.
func (s *Users) Create(ctx context.Context, u *User, roles []auth.CatalogRole) error {
	now := s.db.timestamp()
	err := s.db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO users
			(username, password, email, first_name, last_name, enabled, locked, version, created_at, updated_at, created_by, updated_by)
			VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`,
			u.Username, u.PasswordHash, u.Email, u.FirstName, u.LastName,
			boolInt(u.Enabled), boolInt(u.Locked), now, now, u.CreatedBy, u.CreatedBy)
		if err != nil {
			return fmt.Errorf("store: insert user: %w", translate(err))
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("store: insert user: %w", err)
		}
		u.ID = id
		return linkRoles(ctx, tx, id, roles)
	})
	if err != nil {
		return err
	}
	u.Version = 0
	u.CreatedAt = fromMillis(now)
	u.UpdatedAt = u.CreatedAt
	u.UpdatedBy = u.CreatedBy
	u.Roles = catalogNames(roles)
	return nil
}

// Update overwrites the stored user with u. A nil roles slice leaves the
// role links untouched. The update only applies when u.Version matches
// the stored version; ErrStaleVersion is returned otherwise.
func (s *Users) Update(ctx context.Context, u *User, roles []auth.CatalogRole) error {
	now := s.db.timestamp()
	err := s.db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE users SET
			username = ?, password = ?, email = ?, first_name = ?, last_name = ?,
			enabled = ?, locked = ?, version = version + 1, updated_at = ?, updated_by = ?
			WHERE id = ? AND version = ?`,
			u.Username, u.PasswordHash, u.Email, u.FirstName, u.LastName,
			boolInt(u.Enabled), boolInt(u.Locked), now, u.UpdatedBy, u.ID, u.Version)
		if err != nil {
			return fmt.Errorf("store: update user: %w", translate(err))
		}
		if err := checkAffected(ctx, tx, res, "users", u.ID); err != nil {
			return err
		}
		if roles == nil {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM users_roles WHERE user_id = ?`, u.ID); err != nil {
			return fmt.Errorf("store: unlink roles: %w", err)
		}
		return linkRoles(ctx, tx, u.ID, roles)
	})
	if err != nil {
		return err
	}
	u.Version++
	u.UpdatedAt = fromMillis(now)
	if roles != nil {
		u.Roles = catalogNames(roles)
	}
	return nil
}

// Delete removes the user and its role links.
func (s *Users) Delete(ctx context.Context, username string) error {
	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE username = ?`, username).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: user %q", ErrNotFound, username)
		}
		if err != nil {
			return fmt.Errorf("store: delete user: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM users_roles WHERE user_id = ?`, id); err != nil {
			return fmt.Errorf("store: unlink roles: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
			return fmt.Errorf("store: delete user: %w", err)
		}
		return nil
	})
}

// Count returns the number of stored users.
func (s *Users) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.sql.QueryRowContext(ctx, `SELECT COUNT(1) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count users: %w", err)
	}
	return n, nil
}

func linkRoles(ctx context.Context, tx *sql.Tx, userID int64, roles []auth.CatalogRole) error {
	for _, r := range roles {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO users_roles (user_id, role_id) VALUES (?, ?)`, userID, r.ID); err != nil {
			return fmt.Errorf("store: link role %s: %w", r.Name, err)
		}
	}
	return nil
}

// checkAffected distinguishes a missing row from a version mismatch
// after an optimistic update touched no rows.
func checkAffected(ctx context.Context, tx *sql.Tx, res sql.Result, table string, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM `+table+` WHERE id = ?`, id).Scan(&exists); err != nil {
		return fmt.Errorf("store: check %s: %w", table, err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s id=%v", ErrNotFound, table, id)
	}
	return fmt.Errorf("%w: %s id=%v", ErrStaleVersion, table, id)
}

func catalogNames(roles []auth.CatalogRole) []auth.Role {
	out := make([]auth.Role, 0, len(roles))
	for _, r := range roles {
		out = append(out, r.Name)
	}
	return sortedRoles(out)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
