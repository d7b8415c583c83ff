package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultBind keeps the server reachable from this machine only.
	DefaultBind = "127.0.0.1"

	// DefaultMode arms the idle watchdog.
	DefaultMode = "production"

	// DefaultIdleTimeout is how long a production server waits for a
	// connection before terminating itself.
	DefaultIdleTimeout = 30 * time.Second

	// DefaultHandshakeTimeout bounds how long a client may take to send
	// its key.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultMaxAuthFailures is the number of failed attempts per host
	// before it is locked out.  0 disables lockout.
	DefaultMaxAuthFailures = 0

	// DefaultAuthFailureWindow is how long failures are remembered.
	DefaultAuthFailureWindow = 5 * time.Minute

	// DefaultDialTimeout is the control client's connect timeout.
	DefaultDialTimeout = 5 * time.Second

	// DefaultDialAttempts is how many times the control client tries
	// to connect before giving up.
	DefaultDialAttempts = 3
)
