// Package buildinfo exposes version information injected at build time.
package buildinfo

// Version is set via -ldflags at release time.
var Version = "dev"

// Commit is the git commit the binary was built from.
var Commit = "unknown"
