package config

// loader.go - configuration loading from environment variables and
// YAML files.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (LoadFromEnv)
//   3. Config file  (LoadFile)
//   4. Defaults   (defaults.go)

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"remoteserver/internal/errors"
)

// EnvPrefix starts every supported environment variable.
const EnvPrefix = "REMOTESERVER_"

// ── Config file ──────────────────────────────────────────────────────

// LoadFile overlays the YAML document at path onto cfg.  Keys absent
// from the file keep their current value; unknown keys are an error.
// Durations are written as Go duration strings ("30s", "5m").
func LoadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return &errors.ConfigError{Field: "config", Value: path, Message: err.Error()}
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return &errors.ConfigError{
			Field:   "config",
			Value:   path,
			Message: err.Error(),
			Hint:    "keys are flag names in snake_case, e.g. idle_timeout",
		}
	}
	return nil
}

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the REMOTESERVER_ prefix.  Durations
// accept Go duration strings or a bare number of seconds.

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty,
// well-formed env vars override the existing value.  This should be
// called BEFORE CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := envInt("PORT"); v > 0 && v <= 65535 {
		cfg.Port = uint16(v)
	}
	if v := env("KEY"); v != "" {
		cfg.Key = v
	}
	if v := env("KEY_FILE"); v != "" {
		cfg.KeyFile = v
	}
	if v := env("MODE"); v != "" {
		cfg.Mode = v
	}
	if envBool("DEBUG") {
		cfg.Mode = "debug"
	}
	if v := env("BIND"); v != "" {
		cfg.Bind = v
	}
	if v := envDuration("IDLE_TIMEOUT"); v > 0 {
		cfg.IdleTimeout = v
	}
	if v := envDuration("HANDSHAKE_TIMEOUT"); v > 0 {
		cfg.HandshakeTimeout = v
	}

	// Lockout
	if v := envInt("MAX_AUTH_FAILURES"); v > 0 {
		cfg.MaxAuthFailures = v
	}
	if v := envDuration("AUTH_FAILURE_WINDOW"); v > 0 {
		cfg.AuthFailureWindow = v
	}

	// Output
	if v := env("METRICS_FILE"); v != "" {
		cfg.MetricsFile = v
	}
	if v := envInt("VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func env(name string) string { return os.Getenv(EnvPrefix + name) }

func envInt(name string) int {
	v := env(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(name string) bool {
	v := strings.ToLower(env(name))
	return v == "1" || v == "true" || v == "yes"
}

func envDuration(name string) time.Duration {
	v := env(name)
	if v == "" {
		return 0
	}
	if sec, err := strconv.Atoi(v); err == nil {
		return time.Duration(sec) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}
