// Package main hosts the wavbatch CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once, then hands off to
// internal/batchrun for the daily run, the retention sweep, and report-only
// passes. Ledger inspection, preflight checks, and configuration scaffolding
// are served directly from their internal packages.
//
// Exit codes: 0 on success, 3 when a run found nothing new to process, and 1
// on any other error.
package main
