//go:build !unix || darwin

package util

// macOS and Windows parents do not leave a blocking stderr pipe behind.
const suppressStderrSupported = false

func redirectStderr(int) error { return nil }
