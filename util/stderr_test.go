package util

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"testing"
)

// TestSuppressStderr re-runs the test binary as a child process so the
// redirection does not swallow this process's own test output.
func TestSuppressStderr(t *testing.T) {
	if os.Getenv("REMOTESERVER_STDERR_CHILD") == "1" {
		if err := SuppressStderr(); err != nil {
			fmt.Fprintln(os.Stdout, "error:", err)
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "this must not reach the parent")
		fmt.Fprintln(os.Stdout, "stdout still works")
		os.Exit(0)
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestSuppressStderr$")
	cmd.Env = append(os.Environ(), "REMOTESERVER_STDERR_CHILD=1")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		t.Fatalf("child failed: %v\nstdout: %s\nstderr: %s", err, stdout.String(), stderr.String())
	}
	if !bytes.Contains(stdout.Bytes(), []byte("stdout still works")) {
		t.Errorf("stdout = %q", stdout.String())
	}

	leaked := bytes.Contains(stderr.Bytes(), []byte("must not reach"))
	if suppressStderrSupported && leaked {
		t.Errorf("stderr was not suppressed on %s: %q", runtime.GOOS, stderr.String())
	}
	if !suppressStderrSupported && !leaked {
		t.Errorf("stderr should be untouched on %s", runtime.GOOS)
	}
}
