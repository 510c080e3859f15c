// Package buildinfo holds version identifiers stamped at build time via
// -ldflags.
package buildinfo

var (
	Version    = "v0.3.0"
	CommitHash = "unknown"
)
