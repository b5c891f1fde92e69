// Package version holds build metadata injected at link time.
package version

import "fmt"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// GetInfo returns a human readable version string.
func GetInfo() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date)
}
