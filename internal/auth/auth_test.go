package auth

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAuthenticator_Verify(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		presented string
		want      bool
	}{
		{"exact match", "secret", "secret", true},
		{"wrong key", "secret", "wrong", false},
		{"prefix", "secret", "secre", false},
		{"longer", "secret", "secret ", false},
		{"case matters", "secret", "Secret", false},
		{"empty key empty credential", "", "", true},
		{"empty key non-empty credential", "", "x", false},
		{"non-empty key empty credential", "secret", "", false},
		{"binary bytes", "k\x00ey", "k\x00ey", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, New(tt.key).Verify(tt.presented))
		})
	}
}

func TestCheckKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		ok   bool
	}{
		{"plain", "secret", true},
		{"empty", "", true},
		{"inner carriage return", "a\rb", true},
		{"longest", strings.Repeat("k", MaxKeyLength), true},
		{"newline", "a\nb", false},
		{"trailing carriage return", "secret\r", false},
		{"one byte too long", strings.Repeat("k", MaxKeyLength+1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckKey(tt.key)
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.NotContains(t, err.Error(), tt.key)
		})
	}
}

func TestAuthenticator_DoesNotPrintKey(t *testing.T) {
	a := New("hunter2")
	for _, s := range []string{a.String(), fmt.Sprintf("%v", a), fmt.Sprintf("%+v", a)} {
		require.False(t, strings.Contains(s, "hunter2"), "key leaked in %q", s)
	}
}

func TestLockout_BlocksAfterMax(t *testing.T) {
	l := NewLockout(3, time.Minute)

	for i := 0; i < 2; i++ {
		l.Fail("10.0.0.1")
		require.False(t, l.Blocked("10.0.0.1"))
	}
	l.Fail("10.0.0.1")
	require.True(t, l.Blocked("10.0.0.1"))
	require.Equal(t, 3, l.Failures("10.0.0.1"))

	require.False(t, l.Blocked("10.0.0.2"), "other hosts are unaffected")
}

func TestLockout_Reset(t *testing.T) {
	l := NewLockout(1, time.Minute)
	l.Fail("h")
	require.True(t, l.Blocked("h"))

	l.Reset("h")
	require.False(t, l.Blocked("h"))
	require.Equal(t, 0, l.Failures("h"))
}

func TestLockout_Expires(t *testing.T) {
	l := NewLockout(1, 50*time.Millisecond)
	l.Fail("h")
	require.True(t, l.Blocked("h"))

	require.Eventually(t, func() bool { return !l.Blocked("h") },
		2*time.Second, 10*time.Millisecond)
}

func TestLockout_Disabled(t *testing.T) {
	l := NewLockout(0, time.Minute)
	require.Nil(t, l)

	// A nil lockout is a no-op.
	l.Fail("h")
	l.Reset("h")
	require.False(t, l.Blocked("h"))
	require.Equal(t, 0, l.Failures("h"))
}
