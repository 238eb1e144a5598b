// Package version reports the build version, set at link time with
// -ldflags "-X github.com/eunomia-bpf/eunomia-exporter/internal/version.version=v1.2.3".
package version

var version = "dev"

// String returns the build version.
func String() string {
	return version
}
