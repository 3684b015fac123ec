// Package cache is a small in-process TTL cache with single-flight
// loading. It keeps the role catalog, which almost never changes, off
// the database on every user write.
package cache
