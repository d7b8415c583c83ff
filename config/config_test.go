package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"remoteserver/internal/server"
)

// ── Default ──────────────────────────────────────────────────────────

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Bind != "127.0.0.1" {
		t.Errorf("Bind = %q, want loopback", cfg.Bind)
	}
	if cfg.IdleTimeout != 30*time.Second {
		t.Errorf("IdleTimeout = %v, want 30s", cfg.IdleTimeout)
	}
	mode, err := cfg.ServerMode()
	if err != nil || mode != server.Production {
		t.Errorf("ServerMode() = %v, %v; want production", mode, err)
	}
	if cfg.MaxAuthFailures != 0 {
		t.Errorf("lockout should be off by default, got %d", cfg.MaxAuthFailures)
	}
}

// ── Config.Validate ──────────────────────────────────────────────────

func TestValidate(t *testing.T) {
	valid := func(mutate func(*Config)) Config {
		cfg := Default()
		cfg.Port = 9999
		if mutate != nil {
			mutate(cfg)
		}
		return *cfg
	}

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid production", valid(nil), false},
		{"valid debug", valid(func(c *Config) { c.Mode = "debug" }), false},
		{"empty key allowed", valid(func(c *Config) { c.Key = "" }), false},
		{"no port", valid(func(c *Config) { c.Port = 0 }), true},
		{"bad mode", valid(func(c *Config) { c.Mode = "staging" }), true},
		{"empty bind", valid(func(c *Config) { c.Bind = "" }), true},
		{"negative idle", valid(func(c *Config) { c.IdleTimeout = -time.Second }), true},
		{"negative handshake", valid(func(c *Config) { c.HandshakeTimeout = -time.Second }), true},
		{"negative lockout", valid(func(c *Config) { c.MaxAuthFailures = -1 }), true},
		{"negative window", valid(func(c *Config) { c.AuthFailureWindow = -time.Minute }), true},
		{"key and key file", valid(func(c *Config) { c.Key = "a"; c.KeyFile = "/k" }), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

// ── Config.ResolveKey ────────────────────────────────────────────────

func TestResolveKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "key")
	if err := os.WriteFile(path, []byte("from-file\r\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{KeyFile: path}
	if err := cfg.ResolveKey(); err != nil {
		t.Fatalf("ResolveKey() = %v", err)
	}
	if cfg.Key != "from-file" {
		t.Errorf("Key = %q, want %q", cfg.Key, "from-file")
	}
}

func TestResolveKey_Errors(t *testing.T) {
	if err := (&Config{Key: "a", KeyFile: "/k"}).ResolveKey(); err == nil {
		t.Error("key and key file together should fail")
	}
	missing := filepath.Join(t.TempDir(), "missing")
	if err := (&Config{KeyFile: missing}).ResolveKey(); err == nil {
		t.Error("missing key file should fail")
	}
	cfg := &Config{Key: "kept"}
	if err := cfg.ResolveKey(); err != nil || cfg.Key != "kept" {
		t.Errorf("no key file: Key = %q, err = %v", cfg.Key, err)
	}
}

// ── Config.String ────────────────────────────────────────────────────

func TestString_RedactsKey(t *testing.T) {
	cfg := Default()
	cfg.Port = 9999
	cfg.Key = "hunter2"

	for _, s := range []string{cfg.String(), fmt.Sprintf("%v", cfg), fmt.Sprintf("%#v", cfg), fmt.Sprint(cfg)} {
		if strings.Contains(s, "hunter2") {
			t.Errorf("key leaked: %s", s)
		}
	}
	if !strings.Contains(cfg.String(), "REDACTED") {
		t.Errorf("String() = %q, want REDACTED marker", cfg.String())
	}
	if !strings.Contains(cfg.String(), "port=9999") {
		t.Errorf("String() = %q, want port", cfg.String())
	}
}
