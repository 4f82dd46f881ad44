//go:build !linux

package proctitle

import "os"

// Set only rewrites argv[0] outside Linux.
func Set(role string) error {
	if len(os.Args) > 0 {
		os.Args[0] = For(role)
	}
	return nil
}
