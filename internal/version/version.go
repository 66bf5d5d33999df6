package version

import "runtime"

// Build information set via ldflags at compile time:
//
//	-ldflags "-X genkey/internal/version.Version=1.2.0 -X genkey/internal/version.Commit=$(git rev-parse --short HEAD)"
var (
	// Version is the semantic version of the application.
	Version   = "1.0"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Service is the name reported by the version endpoint.
const Service = "genkey"

// Info returns version information as a structured map.
func Info() map[string]string {
	return map[string]string{
		"service":    Service,
		"version":    Version,
		"commit":     Commit,
		"build_date": BuildDate,
		"go_version": runtime.Version(),
	}
}
