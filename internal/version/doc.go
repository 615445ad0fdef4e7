// Package version holds build metadata injected at link time
// and attaches a cobra `version` subcommand to the CLI binaries.
package version
