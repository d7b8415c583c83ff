package server

import (
	"fmt"
	"strings"
)

// Mode selects whether the idle watchdog runs.  The zero Mode is
// Production, so an unset mode fails safe towards exiting when idle.
type Mode int

const (
	// Production arms the idle watchdog and detaches stderr.
	Production Mode = iota
	// Debug keeps the server alive until it is told to stop.
	Debug
)

func (m Mode) String() string {
	switch m {
	case Production:
		return "production"
	case Debug:
		return "debug"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode accepts "production"/"prod" and "debug", in any case.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "production", "prod":
		return Production, nil
	case "debug":
		return Debug, nil
	default:
		return 0, fmt.Errorf("unknown mode %q (want production or debug)", s)
	}
}

// State is the controller's lifecycle position.
type State int

const (
	Unconfigured State = iota
	Configured
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Unconfigured:
		return "unconfigured"
	case Configured:
		return "configured"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
