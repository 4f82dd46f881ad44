//go:build linux

package proctitle

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Set names the process after role so ps and top tell serve and worker apart.
func Set(role string) error {
	title := For(role)
	if len(os.Args) > 0 {
		os.Args[0] = title
	}

	b := make([]byte, procNameMax+1)
	copy(b, title)
	return unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(&b[0])), 0, 0, 0)
}
