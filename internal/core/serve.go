package core

import (
	"context"

	"remoteserver/internal/metrics"
	"remoteserver/internal/server"
	"remoteserver/util"
)

// ServeMode runs a server until it terminates or ctx is cancelled.
type ServeMode struct {
	Server      *server.Server
	Metrics     *metrics.Collector
	MetricsFile string // written once the server has stopped
	Logger      *util.Logger
}

// Run blocks until the server has terminated.
func (m *ServeMode) Run(ctx context.Context) error {
	err := m.Server.Run(ctx)
	if err == nil {
		m.Logger.Verbose("server stopped: %s", m.Server.Reason())
	}

	if m.MetricsFile != "" {
		if werr := m.Metrics.WriteFile(m.MetricsFile); werr != nil {
			m.Logger.Warn("writing metrics: %v", werr)
		} else {
			m.Logger.Verbose("metrics written to %s", m.MetricsFile)
		}
	}
	return err
}
