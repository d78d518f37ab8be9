// Package version exposes the build version.
package version

// version is overridden at build time via
// -ldflags "-X workforce/internal/version.version=v1.2.3".
var version = "0.1.0-dev"

// Get returns the current version.
func Get() string {
	return version
}
