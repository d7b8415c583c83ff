// Package config defines the runtime configuration for remoteserver and
// the layers it is assembled from: defaults, an optional YAML file,
// environment variables and finally command-line flags.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"remoteserver/internal/auth"
	"remoteserver/internal/errors"
	"remoteserver/internal/server"
)

// Config holds every tuneable for one remoteserver process.
type Config struct {
	// ── Server ───────────────────────────────────────────────────────
	Port             uint16        `yaml:"port"`
	Key              string        `yaml:"key"`
	KeyFile          string        `yaml:"key_file"`
	Mode             string        `yaml:"mode"`
	Bind             string        `yaml:"bind"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	// ── Lockout ──────────────────────────────────────────────────────
	MaxAuthFailures   int           `yaml:"max_auth_failures"`
	AuthFailureWindow time.Duration `yaml:"auth_failure_window"`

	// ── Control client (--ping / --shutdown) ─────────────────────────
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	DialAttempts int           `yaml:"dial_attempts"`

	// ── Output ───────────────────────────────────────────────────────
	MetricsFile string `yaml:"metrics_file"`
	Verbose     int    `yaml:"verbose"`

	// PromptKey is set from the command line only.
	PromptKey bool `yaml:"-"`
}

// Default returns a Config populated from defaults.go.
func Default() *Config {
	return &Config{
		Mode:              DefaultMode,
		Bind:              DefaultBind,
		IdleTimeout:       DefaultIdleTimeout,
		HandshakeTimeout:  DefaultHandshakeTimeout,
		MaxAuthFailures:   DefaultMaxAuthFailures,
		AuthFailureWindow: DefaultAuthFailureWindow,
		DialTimeout:       DefaultDialTimeout,
		DialAttempts:      DefaultDialAttempts,
	}
}

// ServerMode parses Mode.
func (c *Config) ServerMode() (server.Mode, error) {
	return server.ParseMode(c.Mode)
}

// ResolveKey loads the key from KeyFile when one is configured.  A
// single trailing newline is removed so that files written by `echo`
// work.
func (c *Config) ResolveKey() error {
	if c.KeyFile == "" {
		return nil
	}
	if c.Key != "" {
		return &errors.ConfigError{
			Field:   "key-file",
			Value:   c.KeyFile,
			Message: "cannot be combined with --key",
			Hint:    "pass the key one way only",
		}
	}
	data, err := os.ReadFile(c.KeyFile)
	if err != nil {
		return &errors.ConfigError{
			Field:   "key-file",
			Value:   c.KeyFile,
			Message: fmt.Sprintf("cannot read: %v", err),
		}
	}
	key := strings.TrimSuffix(string(data), "\n")
	c.Key = strings.TrimSuffix(key, "\r")
	return nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration can start a server.  The key
// may be empty: an empty key is matched by an empty credential line.
func (c *Config) Validate() error {
	if c.Port == 0 {
		return &errors.ConfigError{
			Field:   "port",
			Value:   c.Port,
			Message: "a listen port is required",
			Hint:    "pass -p <port> or set REMOTESERVER_PORT",
		}
	}
	if _, err := c.ServerMode(); err != nil {
		return &errors.ConfigError{
			Field:   "mode",
			Value:   c.Mode,
			Message: err.Error(),
		}
	}
	if c.Bind == "" {
		return &errors.ConfigError{
			Field:   "bind",
			Message: "bind address cannot be empty",
			Hint:    "the default is " + DefaultBind,
		}
	}
	if c.IdleTimeout < 0 {
		return &errors.ConfigError{Field: "idle-timeout", Value: c.IdleTimeout, Message: "cannot be negative"}
	}
	if c.HandshakeTimeout < 0 {
		return &errors.ConfigError{Field: "handshake-timeout", Value: c.HandshakeTimeout, Message: "cannot be negative"}
	}
	if c.MaxAuthFailures < 0 {
		return &errors.ConfigError{
			Field:   "max-auth-failures",
			Value:   c.MaxAuthFailures,
			Message: "cannot be negative",
			Hint:    "use 0 to disable lockout",
		}
	}
	if c.AuthFailureWindow < 0 {
		return &errors.ConfigError{Field: "auth-failure-window", Value: c.AuthFailureWindow, Message: "cannot be negative"}
	}
	if err := auth.CheckKey(c.Key); err != nil {
		return err
	}
	if c.Key != "" && c.KeyFile != "" {
		return &errors.ConfigError{
			Field:   "key",
			Message: "cannot be combined with --key-file",
			Hint:    "pass the key one way only",
		}
	}
	return nil
}

// String renders the configuration for logs.  The key is never shown.
func (c *Config) String() string {
	key := "unset"
	if c.Key != "" {
		key = "REDACTED"
	}
	return fmt.Sprintf(
		"port=%d bind=%s mode=%s key=%s idle-timeout=%v handshake-timeout=%v max-auth-failures=%d auth-failure-window=%v",
		c.Port, c.Bind, c.Mode, key, c.IdleTimeout, c.HandshakeTimeout, c.MaxAuthFailures, c.AuthFailureWindow,
	)
}

// GoString keeps %#v from printing the key.
func (c *Config) GoString() string { return "config.Config{" + c.String() + "}" }
