// Package version records the release of the PLACE correction tool so run
// reports are traceable to the code that produced them.
package version

import "github.com/blang/semver"

// Version is the current release
var Version = semver.MustParse("2.6.0")

// String returns the version prefixed with "v"
func String() string {
	return "v" + Version.String()
}
