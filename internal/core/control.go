package core

import (
	"context"
	"fmt"
	"io"

	"remoteserver/internal/transport"
	"remoteserver/util"
)

// ControlMode performs one control-client action against a running
// server.
type ControlMode struct {
	Client *transport.Client
	Action Action
	Out    io.Writer // receives --stats output
	Logger *util.Logger
}

// Run performs the action once.
func (m *ControlMode) Run(ctx context.Context) error {
	switch m.Action {
	case ActionPing:
		if err := m.Client.Ping(ctx); err != nil {
			return err
		}
		m.Logger.Info("%s is up", m.Client.Addr)
	case ActionShutdown:
		if err := m.Client.Shutdown(ctx); err != nil {
			return err
		}
		m.Logger.Info("%s is shutting down", m.Client.Addr)
	case ActionStats:
		reply, err := m.Client.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(m.Out, reply)
	default:
		return fmt.Errorf("%s is not a control action", m.Action)
	}
	return nil
}
