package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	"remoteserver/internal/errors"
	"remoteserver/internal/retry"
	"remoteserver/internal/session"
	"remoteserver/util"
)

// DefaultTimeout bounds each exchange with the server.
const DefaultTimeout = 5 * time.Second

// Client issues control commands to a running server.  Every call
// opens a fresh connection, authenticates, sends one command and reads
// one reply.
type Client struct {
	Addr    string
	Key     string
	Dialer  Dialer         // nil means a TCPDialer
	Timeout time.Duration  // per exchange, default DefaultTimeout
	Backoff *retry.Backoff // dial retries, nil means retry.DefaultBackoff
	Logger  *util.Logger
}

// Ping checks that the server is up and accepts the key.
func (c *Client) Ping(ctx context.Context) error {
	return c.expect(ctx, "PING", "PONG")
}

// Shutdown asks the server to terminate.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.expect(ctx, "SHUTDOWN", "BYE")
}

// Stats returns the server's metrics snapshot as JSON.
func (c *Client) Stats(ctx context.Context) (string, error) {
	return c.Do(ctx, "STATS")
}

// Do sends command and returns the server's one-line reply.  Replies
// starting with "ERR " are returned as errors.
func (c *Client) Do(ctx context.Context, command string) (string, error) {
	conn, r, err := c.connect(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout())) //nolint:errcheck
	if _, err := fmt.Fprintf(conn, "%s\n", command); err != nil {
		return "", errors.Wrap("write", c.Addr, err)
	}
	reply, err := session.ReadLine(r, session.MaxLineLength)
	if err != nil {
		return "", errors.Wrap("read", c.Addr, err)
	}
	if msg, ok := strings.CutPrefix(reply, "ERR "); ok {
		return "", fmt.Errorf("server: %s", msg)
	}
	return reply, nil
}

func (c *Client) expect(ctx context.Context, command, want string) error {
	reply, err := c.Do(ctx, command)
	if err != nil {
		return err
	}
	if reply != want {
		return fmt.Errorf("%s: unexpected reply %q", command, reply)
	}
	return nil
}

// connect dials with retries and performs the key handshake.  A
// refused connection is retried; a rejected key is not.
func (c *Client) connect(ctx context.Context) (net.Conn, *bufio.Reader, error) {
	dialer := c.Dialer
	if dialer == nil {
		dialer = &TCPDialer{Timeout: c.timeout()}
	}
	backoff := c.Backoff
	if backoff == nil {
		backoff = retry.DefaultBackoff()
	}
	log := c.Logger
	if log == nil {
		log = util.NewLogger(0)
	}

	var conn net.Conn
	err := backoff.Do(ctx, func(attempt int) error {
		cn, err := dialer.Dial(ctx, "tcp", c.Addr)
		if err != nil {
			nerr := errors.Wrap("dial", c.Addr, err)
			if !nerr.Retryable {
				return retry.Permanent(nerr)
			}
			log.Verbose("attempt %d: %v", attempt, nerr)
			return nerr
		}
		conn = cn
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	conn.SetDeadline(time.Now().Add(c.timeout())) //nolint:errcheck
	if _, err := fmt.Fprintf(conn, "%s\n", c.Key); err != nil {
		conn.Close()
		return nil, nil, errors.Wrap("handshake", c.Addr, err)
	}
	r := bufio.NewReader(conn)
	line, err := session.ReadLine(r, session.MaxLineLength)
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), isReset(err):
		conn.Close()
		return nil, nil, errors.ErrAuthFailed
	case err != nil:
		conn.Close()
		return nil, nil, errors.Wrap("handshake", c.Addr, err)
	case line != "OK":
		conn.Close()
		return nil, nil, fmt.Errorf("handshake: unexpected reply %q", line)
	}
	log.Debug("authenticated to %s", c.Addr)
	return conn, r, nil
}

func (c *Client) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

// isReset reports whether the server dropped the connection, which is
// how it answers a wrong key on some platforms.
func isReset(err error) bool {
	return errors.Is(err, syscall.ECONNRESET)
}
