package auth

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultLockoutWindow is how long failures from one host are
// remembered when no window is configured.
const DefaultLockoutWindow = 5 * time.Minute

// Lockout counts failed authentications per remote host.  Once a host
// reaches the limit inside the window it is refused without reading
// its credential until the window (counted from its first failure)
// expires.
//
// A nil *Lockout is valid and never blocks anyone.
type Lockout struct {
	max      int
	failures *gocache.Cache
}

// NewLockout returns a Lockout allowing limit failures per window.  It
// returns nil (lockout disabled) when limit <= 0.
func NewLockout(limit int, window time.Duration) *Lockout {
	if limit <= 0 {
		return nil
	}
	if window <= 0 {
		window = DefaultLockoutWindow
	}
	return &Lockout{
		max:      limit,
		failures: gocache.New(window, window),
	}
}

// Blocked reports whether host has used up its failures.
func (l *Lockout) Blocked(host string) bool {
	if l == nil {
		return false
	}
	return l.Failures(host) >= l.max
}

// Failures returns the failures currently counted against host.
func (l *Lockout) Failures(host string) int {
	if l == nil {
		return 0
	}
	v, ok := l.failures.Get(host)
	if !ok {
		return 0
	}
	n, _ := v.(int)
	return n
}

// Fail records one failed authentication from host.
func (l *Lockout) Fail(host string) {
	if l == nil {
		return
	}
	if err := l.failures.Add(host, 1, gocache.DefaultExpiration); err == nil {
		return
	}
	if _, err := l.failures.IncrementInt(host, 1); err != nil {
		// The entry expired between Add and Increment.
		l.failures.Set(host, 1, gocache.DefaultExpiration)
	}
}

// Reset forgets the failures of host, typically after it authenticated.
func (l *Lockout) Reset(host string) {
	if l == nil {
		return
	}
	l.failures.Delete(host)
}
