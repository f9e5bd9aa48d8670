// Package config loads, normalizes, and validates wavbatch configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for the
// remote and mail credentials. Values prefixed with "base64:" are decoded so
// deployments that ship encoded secrets in their environment keep working.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
