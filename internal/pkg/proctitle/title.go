package proctitle

import "strings"

const (
	prefix      = "somaai-"
	procNameMax = 15
)

// For returns the short process name for a runtime role, e.g. "somaai-worker".
// Linux caps thread names at 15 bytes, so longer names are cut.
func For(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return strings.TrimSuffix(prefix, "-")
	}
	name := prefix + role
	if len(name) > procNameMax {
		name = name[:procNameMax]
	}
	return name
}
