// Package version holds build identity injected via -ldflags.
package version

var (
	Version = "dev"
	BuildID = "unknown"
)
