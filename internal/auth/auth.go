// Package auth checks the shared secret a client presents when it
// connects, and optionally locks out hosts that keep presenting wrong
// ones.
package auth

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"

	"remoteserver/internal/errors"
	"remoteserver/internal/session"
)

// MaxKeyLength is the longest key that still fits on one credential
// line together with its "\n".
const MaxKeyLength = session.MaxLineLength - 1

// CheckKey rejects keys a client could never present on the one-line
// credential framing: a key containing "\n", ending in "\r" (the reader
// strips it), or longer than MaxKeyLength.
func CheckKey(key string) error {
	switch {
	case strings.Contains(key, "\n"):
		return &errors.ConfigError{
			Field:   "key",
			Message: "cannot contain a newline",
			Hint:    "the key is sent as a single line",
		}
	case strings.HasSuffix(key, "\r"):
		return &errors.ConfigError{
			Field:   "key",
			Message: "cannot end with a carriage return",
			Hint:    "a trailing \\r is stripped from the credential line",
		}
	case len(key) > MaxKeyLength:
		return &errors.ConfigError{
			Field:   "key",
			Message: fmt.Sprintf("is %d bytes long", len(key)),
			Hint:    fmt.Sprintf("use at most %d bytes", MaxKeyLength),
		}
	}
	return nil
}

// Authenticator holds a digest of the authorization key.  The key
// itself is not retained, so it cannot leak through the Authenticator.
type Authenticator struct {
	digest [blake2b.Size256]byte
}

// New returns an Authenticator for key.  An empty key is valid: only
// an empty credential matches it.
func New(key string) *Authenticator {
	return &Authenticator{digest: blake2b.Sum256([]byte(key))}
}

// Verify reports whether presented equals the key byte-for-byte.  Both
// sides are compared as fixed-size digests in constant time, so
// neither the key's contents nor its length are observable through
// timing.
func (a *Authenticator) Verify(presented string) bool {
	got := blake2b.Sum256([]byte(presented))
	return subtle.ConstantTimeCompare(a.digest[:], got[:]) == 1
}

// String never reveals the key.
func (a *Authenticator) String() string { return "auth.Authenticator{key:REDACTED}" }
