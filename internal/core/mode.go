// Package core is the orchestration layer.  It composes the server,
// the control client and configuration into complete operational
// modes and provides a builder that selects the right mode.
//
// Architecture layers (bottom → top):
//
//	watchdog, listener  →  server  →  core  →  cmd (CLI)
//	transport           ↗
package core

import "context"

// Mode is one complete thing the binary can do: serve, or run a single
// control-client action.  Each mode owns its lifecycle from start to
// teardown.
type Mode interface {
	Run(ctx context.Context) error
}

// Action selects the mode Build returns.
type Action int

const (
	ActionServe Action = iota
	ActionPing
	ActionShutdown
	ActionStats
)

func (a Action) String() string {
	switch a {
	case ActionServe:
		return "serve"
	case ActionPing:
		return "ping"
	case ActionShutdown:
		return "shutdown"
	case ActionStats:
		return "stats"
	default:
		return "unknown"
	}
}
