// Package session represents one authenticated connection handed from
// the listener to the protocol layer.
//
// Sessions decouple the protocol from the listener: a capability reads
// and writes through the session and signals shutdown through it,
// without knowing how the connection was accepted or authenticated.
package session

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"remoteserver/internal/metrics"
	"remoteserver/util"
)

// MaxLineLength bounds a single protocol or handshake line, including
// its terminator.
const MaxLineLength = 4096

// ErrLineTooLong is returned by ReadLine when a line exceeds the limit.
var ErrLineTooLong = errors.New("line too long")

// Session encapsulates the runtime context for a single connection.
type Session struct {
	ID      string
	Conn    net.Conn
	Reader  *bufio.Reader // buffered reader over Conn; may hold bytes read past the handshake
	Logger  *util.Logger
	Metrics *metrics.Collector

	shutdownOnce sync.Once
	onShutdown   func()
}

// New creates a Session.  onShutdown is invoked at most once, the first
// time the protocol calls RequestShutdown.
func New(id string, conn net.Conn, r *bufio.Reader, logger *util.Logger,
	m *metrics.Collector, onShutdown func()) *Session {
	if r == nil {
		r = bufio.NewReader(conn)
	}
	return &Session{
		ID:         id,
		Conn:       conn,
		Reader:     r,
		Logger:     logger,
		Metrics:    m,
		onShutdown: onShutdown,
	}
}

// RequestShutdown asks the owner of the listener to stop the server.
// It only raises the request; it does not close anything itself.
func (s *Session) RequestShutdown() {
	s.shutdownOnce.Do(func() {
		if s.onShutdown != nil {
			s.onShutdown()
		}
	})
}

// ReadLine reads one line from the session.
func (s *Session) ReadLine() (string, error) {
	return ReadLine(s.Reader, MaxLineLength)
}

// WriteLine writes a formatted line terminated by "\n".
func (s *Session) WriteLine(format string, args ...interface{}) error {
	_, err := fmt.Fprintf(s.Conn, format+"\n", args...)
	return err
}

// ReadLine reads up to and including '\n' and returns the line without
// its terminator (a trailing "\r" is stripped too).  A line longer than
// limit bytes fails with ErrLineTooLong; input that ends before a
// terminator fails with io.ErrUnexpectedEOF, or io.EOF if nothing was
// read at all.
func ReadLine(r *bufio.Reader, limit int) (string, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > limit {
			return "", ErrLineTooLong
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) && len(line) > 0 {
				return "", io.ErrUnexpectedEOF
			}
			return "", err
		}
		break
	}
	s := strings.TrimSuffix(string(line), "\n")
	return strings.TrimSuffix(s, "\r"), nil
}
