package core

import (
	"io"
	"os"

	"remoteserver/config"
	"remoteserver/internal/event"
	"remoteserver/internal/metrics"
	"remoteserver/internal/retry"
	"remoteserver/internal/server"
	"remoteserver/internal/transport"
	"remoteserver/util"
)

// Build constructs the Mode for action from a validated configuration.
// out receives the output of ActionStats; nil means os.Stdout.
func Build(cfg *config.Config, action Action, out io.Writer, logger *util.Logger) (Mode, error) {
	if out == nil {
		out = os.Stdout
	}
	switch action {
	case ActionServe:
		return buildServe(cfg, logger)
	default:
		return &ControlMode{
			Client: buildClient(cfg, logger),
			Action: action,
			Out:    out,
			Logger: logger,
		}, nil
	}
}

// ── mode builders ────────────────────────────────────────────────────

func buildServe(cfg *config.Config, logger *util.Logger) (Mode, error) {
	mode, err := cfg.ServerMode()
	if err != nil {
		return nil, err
	}
	m := metrics.New()
	events := logger.Named("event")

	srv := server.New(server.Options{
		Host:              cfg.Bind,
		IdleTimeout:       cfg.IdleTimeout,
		HandshakeTimeout:  cfg.HandshakeTimeout,
		MaxAuthFailures:   cfg.MaxAuthFailures,
		AuthFailureWindow: cfg.AuthFailureWindow,
		Logger:            logger,
		Metrics:           m,
		Notify: func(ev event.Event) {
			if ev.Kind == event.Terminated {
				events.Verbose("%s (%s)", ev.Kind, ev.Reason)
				return
			}
			events.Debug("%s conn=%s remote=%s %s", ev.Kind, ev.ConnID, ev.Remote, ev.Reason)
		},
	})
	if err := srv.Init(cfg.Port, cfg.Key, mode); err != nil {
		return nil, err
	}

	return &ServeMode{
		Server:      srv,
		Metrics:     m,
		MetricsFile: cfg.MetricsFile,
		Logger:      logger,
	}, nil
}

// ── shared helpers ───────────────────────────────────────────────────

// buildClient creates the control client for the client actions.
func buildClient(cfg *config.Config, logger *util.Logger) *transport.Client {
	return &transport.Client{
		Addr:    util.FormatAddr(cfg.Bind, int(cfg.Port)),
		Key:     cfg.Key,
		Dialer:  &transport.TCPDialer{Timeout: cfg.DialTimeout},
		Timeout: cfg.DialTimeout,
		Backoff: &retry.Backoff{
			InitialDelay: retry.DefaultInitialDelay,
			MaxAttempts:  cfg.DialAttempts,
			Jitter:       true,
		},
		Logger: logger.Named("client"),
	}
}
