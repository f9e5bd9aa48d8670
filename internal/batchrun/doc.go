// Package batchrun wires the fetcher, conversion pipeline, lifecycle mover,
// publisher, and reporter into the three entry points the CLI exposes: a
// daily run, the retention sweep, and a report-only pass.
//
// Every entry point holds an exclusive file lock for its whole duration so a
// second invocation fails fast instead of racing the first over the stage
// directories and the ledger.
package batchrun
