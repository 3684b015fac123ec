// Package store persists users, roles and todos in SQLite.
//
// The driver is modernc.org/sqlite (pure Go, registered as "sqlite").
// Open applies connection pragmas through the DSN so every pooled
// connection gets them, creates the schema and seeds the role catalog.
//
// Username, e-mail and todo owner columns use NOCASE collation, so
// lookups and uniqueness are case-insensitive.
package store
