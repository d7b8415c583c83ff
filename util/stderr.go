package util

import (
	"fmt"
	"os"
)

// SuppressStderr points the process's standard error at the null
// device.
//
// A parent that started us with stderr redirected to a pipe may stop
// reading from it; once the pipe buffer is full every write to stderr
// blocks.  Redirecting the descriptor (rather than closing it) also
// keeps fd 2 from being reused by a later socket or file, which would
// otherwise receive stray runtime output.
//
// On platforms where inherited stderr pipes are not a problem this is
// a no-op.
func SuppressStderr() error {
	if !suppressStderrSupported {
		return nil
	}
	null, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", os.DevNull, err)
	}
	defer null.Close()

	if err := redirectStderr(int(null.Fd())); err != nil {
		return fmt.Errorf("redirect stderr: %w", err)
	}
	return nil
}
