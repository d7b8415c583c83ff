package config

import (
	"strings"
	"testing"

	"remoteserver/internal/errors"
)

// TestValidate_ErrorMessages verifies that Validate returns actionable
// error messages with hints.
func TestValidate_ErrorMessages(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantSub string // substring expected in error
	}{
		{
			name:    "no port has hint",
			cfg:     Config{Mode: "production", Bind: DefaultBind},
			wantSub: "hint:",
		},
		{
			name:    "negative lockout has hint",
			cfg:     Config{Port: 1, Mode: "debug", Bind: DefaultBind, MaxAuthFailures: -2},
			wantSub: "hint: use 0 to disable lockout",
		},
		{
			name:    "bad mode names the value",
			cfg:     Config{Port: 1, Mode: "staging", Bind: DefaultBind},
			wantSub: `--mode=staging`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantSub)
			}
		})
	}
}

// TestValidate_UnpresentableKey verifies keys that cannot be sent on
// one credential line are rejected with a hint.
func TestValidate_UnpresentableKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"embedded newline", "a\nb"},
		{"trailing carriage return", "abc\r"},
		{"too long", strings.Repeat("x", 4096)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Port = 1
			cfg.Key = tt.key
			err := cfg.Validate()
			var ce *errors.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("want *errors.ConfigError, got %v", err)
			}
			if ce.Field != "key" || ce.Hint == "" {
				t.Errorf("got field %q hint %q", ce.Field, ce.Hint)
			}
		})
	}

	cfg := Default()
	cfg.Port = 1
	cfg.Key = strings.Repeat("x", 4095)
	if err := cfg.Validate(); err != nil {
		t.Errorf("4095-byte key should be valid: %v", err)
	}
}

// TestValidate_ConfigErrorType checks callers can pick out the field.
func TestValidate_ConfigErrorType(t *testing.T) {
	err := (&Config{Mode: "debug", Bind: DefaultBind}).Validate()
	var ce *errors.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("want *errors.ConfigError, got %T", err)
	}
	if ce.Field != "port" {
		t.Errorf("Field = %q, want port", ce.Field)
	}
}

// TestValidate_NeverLeaksKey makes sure no validation message echoes
// the secret.
func TestValidate_NeverLeaksKey(t *testing.T) {
	cfg := Config{Key: "hunter2", KeyFile: "/k", Port: 1, Mode: "debug", Bind: DefaultBind}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if strings.Contains(err.Error(), "hunter2") {
		t.Errorf("key leaked: %v", err)
	}
}
