// Package version holds build metadata injected via ldflags.
package version

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// UserAgent identifies this build to upstream HTTP APIs.
func UserAgent() string {
	return "memorag/" + Version + " (" + Commit + ")"
}
