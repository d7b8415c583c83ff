// Package capability defines what happens over an authenticated
// connection.  The listener only authenticates; everything after that
// is delegated to a Capability operating on a Session, which keeps the
// protocol testable and decoupled from connection handling.
package capability

import (
	"context"

	"remoteserver/internal/session"
)

// Capability handles one authenticated connection.
type Capability interface {
	// Handle runs the protocol against the given session.  It blocks
	// until the client is done, the connection is closed, or the
	// context is cancelled.  The caller closes the connection.
	Handle(ctx context.Context, sess *session.Session) error
}

// Func adapts an ordinary function to the Capability interface.
type Func func(ctx context.Context, sess *session.Session) error

// Handle calls f(ctx, sess).
func (f Func) Handle(ctx context.Context, sess *session.Session) error { return f(ctx, sess) }
