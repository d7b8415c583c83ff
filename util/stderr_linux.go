//go:build linux

package util

import "golang.org/x/sys/unix"

const suppressStderrSupported = true

// redirectStderr uses dup3, which unlike dup2 exists on every Linux
// architecture.
func redirectStderr(fd int) error {
	return unix.Dup3(fd, unix.Stderr, 0)
}
