// Package preflight provides readiness checks for the filesystem, binaries,
// and remote services a wavbatch run depends on.
//
// The run command calls RunAll before touching the remote host and aborts on
// any failed check; "wavbatch preflight" prints the same results. Checks for
// optional features (mail, publishing) are skipped when the feature is
// disabled.
package preflight
