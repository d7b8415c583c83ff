// Package listener owns the server's TCP socket.  It accepts
// connections, authenticates each one against the shared key, hands
// authenticated connections to the protocol layer, and reports what
// happened as lifecycle events.
//
// The accept loop and every connection run on goroutines owned by the
// Listener; callers only ever see events.
package listener

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"remoteserver/internal/auth"
	"remoteserver/internal/capability"
	"remoteserver/internal/clock"
	"remoteserver/internal/errors"
	"remoteserver/internal/event"
	"remoteserver/internal/metrics"
	"remoteserver/internal/session"
	"remoteserver/util"
)

const (
	// DefaultHost keeps the server reachable from this machine only.
	DefaultHost = "127.0.0.1"

	// DefaultHandshakeTimeout bounds how long a client may take to
	// present its key.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultEventBuffer is the capacity of the events channel.
	DefaultEventBuffer = 16

	// authOK is sent to a client that presented the right key.
	authOK = "OK"
)

// Config describes a Listener.  Only Port and Authenticator are
// required.
type Config struct {
	Host             string
	Port             uint16
	Authenticator    *auth.Authenticator
	Lockout          *auth.Lockout         // nil disables lockout
	Handler          capability.Capability // nil means capability.Control
	HandshakeTimeout time.Duration
	EventBuffer      int
	Clock            clock.Clock
	Logger           *util.Logger
	Metrics          *metrics.Collector
}

// Listener accepts and authenticates connections.
type Listener struct {
	cfg    Config
	events chan event.Event
	done   chan struct{}

	mu      sync.Mutex
	ln      net.Listener
	ctx     context.Context
	cancel  context.CancelFunc
	conns   map[net.Conn]struct{}
	started bool
	closed  bool

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New returns an unbound Listener.  Defaults are filled in for every
// optional field of cfg.
func New(cfg Config) *Listener {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Authenticator == nil {
		cfg.Authenticator = auth.New("")
	}
	if cfg.Handler == nil {
		cfg.Handler = &capability.Control{}
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultEventBuffer
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = util.NewLogger(0)
	}
	return &Listener{
		cfg:    cfg,
		events: make(chan event.Event, cfg.EventBuffer),
		done:   make(chan struct{}),
		conns:  make(map[net.Conn]struct{}),
	}
}

// Events delivers ConnectionAccepted, AuthenticationFailed and
// ShutdownRequested events.  For any one connection, its
// ConnectionAccepted event is delivered before its authentication
// outcome.  The channel is never closed; use Done to detect the end of
// the accept loop.
func (l *Listener) Events() <-chan event.Event { return l.events }

// Done is closed once the accept loop has exited, either because the
// listener was closed or because accepting failed permanently.
func (l *Listener) Done() <-chan struct{} { return l.done }

// Start binds the socket and starts accepting.  It returns a bind
// error (see errors.IsBindError) if the port is 0 or unavailable.  On
// a listener that is already running Start does nothing.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return errors.ErrStopped
	}
	if l.started {
		return nil
	}

	addr := util.FormatAddr(l.cfg.Host, int(l.cfg.Port))
	if l.cfg.Port == 0 {
		return errors.Bind(addr, errors.ErrInvalidPort)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Bind(addr, err)
	}

	l.ln = ln
	l.started = true
	l.ctx, l.cancel = context.WithCancel(ctx)

	// Unblock Accept when the context ends.
	go func(ctx context.Context) {
		<-ctx.Done()
		ln.Close()
	}(l.ctx)

	if !util.IsLoopback(l.cfg.Host) {
		l.cfg.Logger.Warn("%s is not a loopback address; the server is reachable from other hosts", l.cfg.Host)
	}
	l.cfg.Logger.Verbose("listening on %s", ln.Addr())

	l.wg.Add(1)
	go l.acceptLoop()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Close is Stop followed by Wait.  It must not be called from a
// goroutine the listener owns, such as a Handler.
func (l *Listener) Close() error {
	err := l.Stop()
	l.Wait()
	return err
}

// Stop stops accepting and closes the socket and every open
// connection.  The port is free when Stop returns, but handlers may
// still be unwinding; Wait for them.  Only the first call does
// anything, and any goroutine may make it.
func (l *Listener) Stop() error {
	var err error
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		if l.cancel != nil {
			l.cancel()
		}
		if l.ln != nil {
			if cerr := l.ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
				err = cerr
			}
		}
		for c := range l.conns {
			c.Close()
		}
		started := l.started
		l.mu.Unlock()

		if !started {
			close(l.done)
		}
		l.cfg.Logger.Verbose("listener stopped")
	})
	return err
}

// Wait blocks until the accept loop and every connection goroutine
// have returned.
func (l *Listener) Wait() { l.wg.Wait() }

// ── accept loop ──────────────────────────────────────────────────────

func (l *Listener) acceptLoop() {
	defer l.wg.Done()
	defer close(l.done)

	var backoff time.Duration
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if l.ctx.Err() != nil {
				return
			}
			if errors.IsRetryable(err) {
				backoff = nextBackoff(backoff)
				l.cfg.Logger.Warn("accept: %v; retrying in %v", err, backoff)
				l.cfg.Metrics.RecordError(fmt.Sprintf("accept: %v", err))
				sleepCtx(l.ctx, backoff)
				continue
			}
			l.cfg.Logger.Error("accept: %v", err)
			l.cfg.Metrics.RecordError(fmt.Sprintf("accept: %v", err))
			return
		}
		backoff = 0

		if !l.track(conn) {
			conn.Close()
			return
		}

		id := uuid.NewString()
		remote := conn.RemoteAddr().String()
		l.cfg.Metrics.ConnectionOpened()
		l.cfg.Logger.Verbose("[%s] connection from %s", id, remote)

		// Emitted here, before the handshake goroutine exists, so the
		// owner always sees the accept before the auth outcome.
		l.emit(event.Event{Kind: event.ConnectionAccepted, ConnID: id, Remote: remote})

		l.wg.Add(1)
		go l.serveConn(id, conn)
	}
}

func (l *Listener) serveConn(id string, conn net.Conn) {
	defer l.wg.Done()
	defer l.cfg.Metrics.ConnectionClosed()
	defer l.untrack(conn)

	remote := conn.RemoteAddr().String()
	host := util.RemoteHost(conn.RemoteAddr())

	if l.cfg.Lockout.Blocked(host) {
		l.reject(id, remote, errors.ErrLockedOut.Error())
		return
	}

	r, err := l.handshake(conn)
	if err != nil {
		if l.ctx.Err() != nil {
			return
		}
		l.cfg.Lockout.Fail(host)
		l.reject(id, remote, err.Error())
		return
	}

	l.cfg.Lockout.Reset(host)
	l.cfg.Metrics.AuthSucceeded()
	l.cfg.Logger.Verbose("[%s] %s authenticated", id, remote)

	sess := session.New(id, conn, r, l.cfg.Logger, l.cfg.Metrics, func() {
		l.cfg.Logger.Info("[%s] shutdown requested by %s", id, remote)
		l.emit(event.Event{Kind: event.ShutdownRequested, ConnID: id, Remote: remote})
	})
	if err := l.cfg.Handler.Handle(l.ctx, sess); err != nil && l.ctx.Err() == nil {
		l.cfg.Logger.Verbose("[%s] session ended: %v", id, err)
		l.cfg.Metrics.RecordError(fmt.Sprintf("session: %v", err))
	}
}

// handshake reads the client's credential and checks it.  The
// credential never leaves this function.
func (l *Listener) handshake(conn net.Conn) (*bufio.Reader, error) {
	conn.SetReadDeadline(time.Now().Add(l.cfg.HandshakeTimeout)) //nolint:errcheck

	r := bufio.NewReader(conn)
	presented, err := session.ReadLine(r, session.MaxLineLength)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, fmt.Errorf("handshake: %w", errors.ErrTimeout)
		}
		return nil, fmt.Errorf("handshake: %w", err)
	}
	if !l.cfg.Authenticator.Verify(presented) {
		return nil, errors.ErrAuthFailed
	}

	conn.SetReadDeadline(time.Time{}) //nolint:errcheck
	conn.SetWriteDeadline(time.Now().Add(l.cfg.HandshakeTimeout)) //nolint:errcheck
	if _, err := fmt.Fprintf(conn, "%s\n", authOK); err != nil {
		return nil, fmt.Errorf("handshake: %w", err)
	}
	conn.SetWriteDeadline(time.Time{}) //nolint:errcheck
	return r, nil
}

// reject closes a connection that failed authentication.  The server
// keeps listening.
func (l *Listener) reject(id, remote, reason string) {
	l.cfg.Metrics.AuthFailed()
	l.cfg.Logger.Verbose("[%s] %s rejected: %s", id, remote, reason)
	l.emit(event.Event{Kind: event.AuthenticationFailed, ConnID: id, Remote: remote, Reason: reason})
}

// emit delivers ev unless the listener is shutting down, in which case
// the event is dropped rather than blocking teardown.
func (l *Listener) emit(ev event.Event) {
	ev.At = l.cfg.Clock.Now()
	select {
	case l.events <- ev:
	case <-l.ctx.Done():
	}
}

func (l *Listener) track(conn net.Conn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.conns[conn] = struct{}{}
	return true
}

func (l *Listener) untrack(conn net.Conn) {
	l.mu.Lock()
	delete(l.conns, conn)
	l.mu.Unlock()
	conn.Close()
}

// ── helpers ──────────────────────────────────────────────────────────

const maxAcceptBackoff = time.Second

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	return min(d*2, maxAcceptBackoff)
}

// sleepCtx sleeps for at most d, returning early if ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
