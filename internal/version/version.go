// Package version provides centralized version information for codedocent.
package version

// These variables can be overridden at build time using ldflags:
// go build -ldflags "-X codedocent/internal/version.Version=1.0.0 -X codedocent/internal/version.Commit=abc123"
var (
	// Version is the semantic version of codedocent
	Version = "0.5.0"

	// Commit is the git commit hash (set at build time)
	Commit = "unknown"

	// BuildDate is the build timestamp (set at build time)
	BuildDate = "unknown"
)

// Info returns the full version string shown by the version command,
// including commit and build date when the build set them.
func Info() string {
	s := Version
	if Commit != "unknown" && len(Commit) >= 7 {
		s += " (" + Commit[:7] + ")"
	}
	if BuildDate != "unknown" {
		s += " built " + BuildDate
	}
	return s
}

// UserAgent returns the HTTP User-Agent string for outbound AI calls.
func UserAgent() string {
	return "Codedocent/" + Version
}
