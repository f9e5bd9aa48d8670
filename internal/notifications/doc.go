// Package notifications delivers the daily status report by email.
//
// NewService returns an SMTP-backed implementation when mail is enabled in
// config.toml and degrades to a no-op otherwise, so callers depend only on
// the Service interface. The run log attachment is gzip-compressed before it
// is attached.
package notifications
