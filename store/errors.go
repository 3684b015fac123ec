package store

import (
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Sentinel errors for store operations.
var (
	ErrNotFound     = errors.New("store: not found")
	ErrConflict     = errors.New("store: conflict")
	ErrStaleVersion = errors.New("store: stale version")
	ErrClosed       = errors.New("store: closed")
)

// ConflictError reports a unique constraint violation on a column.
type ConflictError struct {
	Table  string
	Column string
}

// Error implements error.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("store: %s.%s already exists", e.Table, e.Column)
}

// Is makes errors.Is(err, ErrConflict) match.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// translate maps driver errors to package errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return conflictFromMessage(se.Error())
		case sqlite3.SQLITE_CONSTRAINT:
			if isUniqueViolation(se.Error()) {
				return conflictFromMessage(se.Error())
			}
		}
	}
	return err
}

func isUniqueViolation(msg string) bool {
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY constraint failed")
}

// conflictFromMessage parses the table and column out of a driver
// message such as "constraint failed: UNIQUE constraint failed: users.email (2067)".
func conflictFromMessage(msg string) error {
	const marker = "constraint failed: "
	i := strings.LastIndex(msg, marker)
	if i < 0 {
		return ErrConflict
	}
	cols := msg[i+len(marker):]
	first, _, _ := strings.Cut(cols, ",")
	first = strings.TrimSpace(first)
	first, _, _ = strings.Cut(first, " ")
	table, column, ok := strings.Cut(first, ".")
	if !ok {
		return ErrConflict
	}
	return &ConflictError{Table: table, Column: column}
}
