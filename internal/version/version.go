// Package version holds the client version reported to the server when a
// client identity is generated.
package version

import "fmt"

const (
	Major = 0
	Minor = 1
	Patch = 0
)

// PreRelease is appended to the semver string when not empty.
var PreRelease = "pre"

// String returns the semver string of this client.
func String() string {
	s := fmt.Sprintf("%d.%d.%d", Major, Minor, Patch)
	if PreRelease != "" {
		s += "-" + PreRelease
	}
	return s
}
