// Package report reconciles ledger statuses against the stage directories
// and renders the daily status artifacts: a spreadsheet of every source
// recording and a plain-text summary for the status mail.
//
// Reconciliation is read-only. The filesystem view overrides the ledger
// status in the report, never in the database.
package report
