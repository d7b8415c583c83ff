// Package server is the controller that ties the authenticated
// listener and the idle watchdog together.
//
// A Server is configured once with Init, bound with Start and stopped
// with Terminate.  All lifecycle transitions after Start are handled by
// a single event-loop goroutine, so a connection arriving, the watchdog
// firing and a client asking for shutdown are never processed
// concurrently.  Whatever triggers it, termination runs exactly once.
package server

import (
	"context"
	"net"
	"sync"
	"time"

	"remoteserver/internal/auth"
	"remoteserver/internal/capability"
	"remoteserver/internal/clock"
	"remoteserver/internal/errors"
	"remoteserver/internal/event"
	"remoteserver/internal/listener"
	"remoteserver/internal/metrics"
	"remoteserver/internal/watchdog"
	"remoteserver/util"
)

// Options are the parts of a Server that are not its identity (port,
// key, mode).  The zero value is usable.
type Options struct {
	Host              string        // bind host, default 127.0.0.1
	IdleTimeout       time.Duration // watchdog window, default 30s
	HandshakeTimeout  time.Duration // default 10s
	MaxAuthFailures   int           // per host; 0 disables lockout
	AuthFailureWindow time.Duration

	// Handler runs on each authenticated connection.  Defaults to the
	// control protocol.
	Handler capability.Capability

	// Notify receives every lifecycle event, one at a time, on the
	// controller goroutine.  It may call Terminate.  The one exception
	// is a server terminated before Start: its Terminated event is
	// delivered on the goroutine that called Terminate.
	Notify func(event.Event)

	// SuppressStderr detaches stderr in Production mode.  Defaults to
	// util.SuppressStderr.
	SuppressStderr func() error

	Clock   clock.Clock
	Logger  *util.Logger
	Metrics *metrics.Collector
}

// Server is safe for concurrent use.
type Server struct {
	opts  Options
	log   *util.Logger
	clock clock.Clock
	wd    *watchdog.Watchdog

	mu     sync.Mutex
	state  State
	port   uint16
	key    string
	mode   Mode
	ln     *listener.Listener
	reason string

	// requested is the reason recorded by the controller before it
	// notifies about a shutdown request, so a Terminate from Notify
	// does not relabel it.
	requested string

	stop     chan struct{} // closed when termination begins
	done     chan struct{} // closed after the Terminated event
	termOnce sync.Once
}

// New returns an Unconfigured server.
func New(opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = util.NewLogger(0)
	}
	if opts.SuppressStderr == nil {
		opts.SuppressStderr = util.SuppressStderr
	}
	return &Server{
		opts:  opts,
		log:   opts.Logger.Named("server"),
		clock: opts.Clock,
		wd:    watchdog.New(opts.Clock, opts.IdleTimeout),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Init records the server's port, key and mode.  It may be called
// again until the server starts; afterwards the configuration is
// frozen and Init returns ErrAlreadyStarted.  A key no client could
// present (see auth.CheckKey) is rejected with a *errors.ConfigError.
func (s *Server) Init(port uint16, key string, mode Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Running || s.state == Stopped {
		return errors.ErrAlreadyStarted
	}
	if err := auth.CheckKey(key); err != nil {
		return err
	}
	s.port = port
	s.key = key
	s.mode = mode
	s.state = Configured
	return nil
}

// Start binds the listener and begins serving.  Binding happens before
// Start returns so that a bind error (errors.IsBindError) reaches the
// caller; the server then stays Configured and Start may be retried.
// Calling Start on a running server does nothing.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Unconfigured:
		return errors.ErrNotConfigured
	case Running:
		return nil
	case Stopped:
		return errors.ErrStopped
	}

	ln := listener.New(listener.Config{
		Host:             s.opts.Host,
		Port:             s.port,
		Authenticator:    auth.New(s.key),
		Lockout:          auth.NewLockout(s.opts.MaxAuthFailures, s.opts.AuthFailureWindow),
		Handler:          s.opts.Handler,
		HandshakeTimeout: s.opts.HandshakeTimeout,
		Clock:            s.clock,
		Logger:           s.opts.Logger.Named("listener"),
		Metrics:          s.opts.Metrics,
	})
	if err := ln.Start(context.Background()); err != nil {
		s.log.Error("%v", err)
		return err
	}
	s.ln = ln
	s.state = Running

	if s.mode == Production {
		s.wd.Arm(0)
		s.log.Info("listening on %s (production, idle timeout %v)", ln.Addr(), s.wd.Duration())
		// Nobody may be reading our stderr any more; later writes
		// must not block.
		if err := s.opts.SuppressStderr(); err != nil {
			s.log.Warn("detaching stderr: %v", err)
		}
	} else {
		s.log.Info("listening on %s (debug, no idle timeout)", ln.Addr())
	}

	go s.loop(ln)
	return nil
}

// Terminate stops the server.  Any number of calls, from any goroutine
// (including a Notify callback or a connection Handler), result in one
// shutdown.  The socket is released by the time the first call
// returns; Done closes once every connection goroutine has finished.
func (s *Server) Terminate() { s.terminate(event.ReasonExternal) }

// Run starts the server if needed and blocks until it terminates,
// terminating it when ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		s.Terminate()
	case <-s.done:
	}
	<-s.done
	return nil
}

// ── accessors ────────────────────────────────────────────────────────

// Port returns the configured port.
func (s *Server) Port() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// AuthorizationKey returns the configured key.  It is the only way the
// key leaves the server.
func (s *Server) AuthorizationKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

// Mode returns the configured mode.  Before Init it is Production, the
// zero Mode.
func (s *Server) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// State returns the lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Addr returns the bound address, or nil if the server never started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Reason returns why the server terminated, or "" while it has not.
func (s *Server) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Deadline returns the watchdog's current deadline.  The second result
// is false when no watchdog is armed.
func (s *Server) Deadline() (time.Time, bool) { return s.wd.Deadline() }

// Done is closed once the server has terminated and the Terminated
// event has been delivered.
func (s *Server) Done() <-chan struct{} { return s.done }

// Wait blocks until Done is closed.
func (s *Server) Wait() { <-s.done }

// ── event loop ───────────────────────────────────────────────────────

func (s *Server) loop(ln *listener.Listener) {
	defer close(s.done)

	for {
		// Termination wins over anything else that is ready.
		select {
		case <-s.stop:
			s.finish(ln)
			return
		default:
		}

		select {
		case <-s.stop:
			s.finish(ln)
			return
		case ev := <-ln.Events():
			s.handle(ev)
		case <-s.wd.Expired():
			s.log.Info("idle for %v, shutting down", s.wd.Duration())
			s.terminate(event.ReasonWatchdog)
		case <-ln.Done():
			s.terminate(event.ReasonListenerStopped)
		}
	}
}

func (s *Server) handle(ev event.Event) {
	switch ev.Kind {
	case event.ConnectionAccepted:
		s.restartWatchdog()
		s.notify(ev)
	case event.AuthenticationFailed:
		s.log.Verbose("[%s] authentication failed from %s: %s", ev.ConnID, ev.Remote, ev.Reason)
		s.notify(ev)
	case event.ShutdownRequested:
		s.mu.Lock()
		s.requested = event.ReasonShutdownRequest
		s.mu.Unlock()
		s.notify(ev)
		s.terminate(event.ReasonShutdownRequest)
	}
}

// restartWatchdog extends the idle deadline.  It holds s.mu so that a
// concurrent terminate cannot cancel the watchdog in between the state
// check and the restart.
func (s *Server) restartWatchdog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Running || s.mode != Production {
		return
	}
	s.wd.Restart()
	s.opts.Metrics.WatchdogRestarted()
	if dl, ok := s.wd.Deadline(); ok {
		s.log.Debug("watchdog restarted, deadline %s", dl.Format(time.RFC3339))
	}
}

func (s *Server) terminate(reason string) {
	s.termOnce.Do(func() {
		s.mu.Lock()
		wasRunning := s.state == Running
		s.state = Stopped
		if s.requested != "" {
			reason = s.requested
		}
		s.reason = reason
		ln := s.ln
		s.mu.Unlock()

		s.wd.Cancel()
		close(s.stop)

		if !wasRunning {
			s.notifyTerminated()
			close(s.done)
			return
		}
		// Stop, not Close: the caller may be one of the listener's own
		// connection goroutines.  The controller waits for them.
		if err := ln.Stop(); err != nil {
			s.log.Warn("closing listener: %v", err)
		}
		s.log.Info("terminated: %s", reason)
	})
}

// finish waits for the listener's goroutines and reports termination.
func (s *Server) finish(ln *listener.Listener) {
	ln.Wait()
	s.notifyTerminated()
}

func (s *Server) notifyTerminated() {
	s.notify(event.Event{Kind: event.Terminated, Reason: s.Reason()})
}

func (s *Server) notify(ev event.Event) {
	if ev.At.IsZero() {
		ev.At = s.clock.Now()
	}
	if s.opts.Notify != nil {
		s.opts.Notify(ev)
	}
}
