// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp batch names, source file names, and run
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate per-file
//     failures into ledger statuses (failed vs retry on the next run).
//
// Integrations with external programs and servers live in subpackages
// (sftpremote, ffmpeg) so each can be faked in tests. Status mail delivery
// lives in internal/notifications.
package services
