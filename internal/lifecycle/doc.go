// Package lifecycle moves recordings and their artifacts between stage
// directories.
//
// The Mover owns directory placement. It never touches the ledger; callers
// update statuses from the results it returns. All filesystem access goes
// through an afero.Fs so tests can run against an in-memory tree.
package lifecycle
