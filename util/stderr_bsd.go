//go:build unix && !linux && !darwin

package util

import "golang.org/x/sys/unix"

const suppressStderrSupported = true

func redirectStderr(fd int) error {
	return unix.Dup2(fd, unix.Stderr)
}
