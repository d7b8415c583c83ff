// Package event defines the lifecycle notifications that flow from the
// listener to the server controller and from the controller to its
// owner.
package event

import "time"

// Kind identifies a lifecycle event.
type Kind int

const (
	// ConnectionAccepted is raised as soon as a connection is accepted,
	// before the client has authenticated.
	ConnectionAccepted Kind = iota + 1
	// AuthenticationFailed is raised when a client presented a wrong
	// credential or was locked out.  The server keeps listening.
	AuthenticationFailed
	// ShutdownRequested is raised when an authenticated client asks the
	// server to stop.
	ShutdownRequested
	// Terminated is raised exactly once when the server has released
	// its socket.
	Terminated
)

func (k Kind) String() string {
	switch k {
	case ConnectionAccepted:
		return "connection-accepted"
	case AuthenticationFailed:
		return "authentication-failed"
	case ShutdownRequested:
		return "shutdown-requested"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Termination reasons carried by Terminated events.
const (
	ReasonExternal        = "external"
	ReasonWatchdog        = "watchdog expired"
	ReasonShutdownRequest = "shutdown requested"
	ReasonListenerStopped = "listener stopped"
)

// Event is a single lifecycle notification.  It never carries the
// authentication key or the credential a client presented.
type Event struct {
	Kind   Kind
	ConnID string // per-connection id; empty for Terminated
	Remote string // remote address; empty for Terminated
	Reason string // failure or termination reason, if any
	At     time.Time
}
