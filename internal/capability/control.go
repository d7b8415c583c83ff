package capability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"remoteserver/internal/session"
)

// Control commands.  Matching is case-insensitive.
const (
	CmdPing     = "PING"
	CmdStats    = "STATS"
	CmdShutdown = "SHUTDOWN"
	CmdQuit     = "QUIT"
)

// Control is the built-in line protocol spoken after authentication:
//
//	PING      -> PONG
//	STATS     -> one-line JSON metrics snapshot
//	SHUTDOWN  -> BYE, then the server is asked to stop
//	QUIT      -> BYE, connection closed
type Control struct{}

// Handle serves commands until QUIT, SHUTDOWN, EOF or cancellation.
func (c *Control) Handle(ctx context.Context, sess *session.Session) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := sess.ReadLine()
		if err != nil {
			if isClosed(err) {
				return nil
			}
			return fmt.Errorf("read command: %w", err)
		}

		cmd := strings.ToUpper(strings.TrimSpace(line))
		if cmd == "" {
			continue
		}
		sess.Metrics.CommandHandled()
		sess.Logger.Debug("[%s] command %s", sess.ID, cmd)

		switch cmd {
		case CmdPing:
			err = sess.WriteLine("PONG")
		case CmdStats:
			err = sess.WriteLine("%s", sess.Metrics.JSON())
		case CmdShutdown:
			sess.Metrics.ShutdownRequested()
			sess.WriteLine("BYE") //nolint:errcheck // the request stands even if the client went away
			sess.RequestShutdown()
			return nil
		case CmdQuit:
			sess.WriteLine("BYE") //nolint:errcheck
			return nil
		default:
			err = sess.WriteLine("ERR unknown command %q", cmd)
		}
		if err != nil {
			if isClosed(err) {
				return nil
			}
			return fmt.Errorf("write reply: %w", err)
		}
	}
}

// isClosed returns true for errors that just mean the peer or the
// server closed the connection.
func isClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe)
}
