// Package ledger persists source recordings and their derived artifacts in
// SQLite.
//
// The Store is the single source of truth for "has this file already been
// handled". Every write is insert-or-ignore on the table's unique key, so
// repeated runs over the same tree never duplicate rows, and status updates
// are unconditional by name. The schema is created on first open; a database
// written by an incompatible version is rejected with ErrSchemaMismatch.
//
// Generic table access goes through the closed Table enumeration. No query in
// this package is assembled from caller-supplied identifiers.
package ledger
