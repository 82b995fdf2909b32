// Package sqlite provides the SQLite-backed implementation of the
// DocumentStore driven port.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO, enabling easy cross-compilation.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql
// files. Canonical documents own a 1:1 content row and a set of keyword
// links, both deleted by cascade with the document.
//
// # Upsert Identity
//
// Documents are keyed by (source_identifier, content_hash). An upsert with a
// known pair is a no-op; a new hash for a known source updates the existing
// row in place. Write transactions open immediately so concurrent upserts on
// the same key serialise.
//
// # Data Location
//
// By default, the database is stored at ~/.radnorm/data/radnorm.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking
// provided by SQLite in WAL mode.
package sqlite
