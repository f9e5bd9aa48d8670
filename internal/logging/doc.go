// Package logging assembles structured slog loggers and formatting helpers used
// across wavbatch components.
//
// It owns the configurable console/JSON handlers, fans console output out to a
// per-run JSON log file, and exposes context-aware helpers so pipeline code can
// tag log lines with batch names, source files, and run identifiers. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail.
package logging
