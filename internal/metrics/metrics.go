// Package metrics provides lightweight, lock-free counters and gauges
// for tracking runtime statistics of a remote server.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for one server instance.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	connectionsActive atomic.Int64
	connectionsTotal  atomic.Int64
	authSucceeded     atomic.Int64
	authFailed        atomic.Int64
	commandsTotal     atomic.Int64
	shutdownRequests  atomic.Int64
	watchdogRestarts  atomic.Int64
	errorsTotal       atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastActivity time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	now := time.Now()
	return &Collector{startTime: now, lastActivity: now}
}

// ── Connection metrics ───────────────────────────────────────────────

// ConnectionOpened increments both the active and total counters and
// marks the server as active.
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(1)
	c.connectionsTotal.Add(1)
	c.touch()
}

// ConnectionClosed decrements the active connection counter.
func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(-1)
}

// ActiveConnections returns the current number of open connections.
func (c *Collector) ActiveConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsActive.Load()
}

// TotalConnections returns the lifetime connection count.
func (c *Collector) TotalConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsTotal.Load()
}

// ── Authentication metrics ───────────────────────────────────────────

// AuthSucceeded records a client that presented the right key.
func (c *Collector) AuthSucceeded() {
	if c == nil {
		return
	}
	c.authSucceeded.Add(1)
}

// AuthFailed records a rejected client.
func (c *Collector) AuthFailed() {
	if c == nil {
		return
	}
	c.authFailed.Add(1)
}

// AuthFailures returns the number of rejected clients.
func (c *Collector) AuthFailures() int64 {
	if c == nil {
		return 0
	}
	return c.authFailed.Load()
}

// AuthSuccesses returns the number of authenticated clients.
func (c *Collector) AuthSuccesses() int64 {
	if c == nil {
		return 0
	}
	return c.authSucceeded.Load()
}

// ── Protocol metrics ─────────────────────────────────────────────────

// CommandHandled records one protocol command.
func (c *Collector) CommandHandled() {
	if c == nil {
		return
	}
	c.commandsTotal.Add(1)
	c.touch()
}

// Commands returns the number of protocol commands handled.
func (c *Collector) Commands() int64 {
	if c == nil {
		return 0
	}
	return c.commandsTotal.Load()
}

// ShutdownRequested records a client asking the server to stop.
func (c *Collector) ShutdownRequested() {
	if c == nil {
		return
	}
	c.shutdownRequests.Add(1)
}

// ShutdownRequests returns the number of shutdown requests received.
func (c *Collector) ShutdownRequests() int64 {
	if c == nil {
		return 0
	}
	return c.shutdownRequests.Load()
}

// ── Watchdog metrics ─────────────────────────────────────────────────

// WatchdogRestarted records one watchdog restart.
func (c *Collector) WatchdogRestarted() {
	if c == nil {
		return
	}
	c.watchdogRestarts.Add(1)
}

// WatchdogRestarts returns the number of watchdog restarts.
func (c *Collector) WatchdogRestarts() int64 {
	if c == nil {
		return 0
	}
	return c.watchdogRestarts.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

func (c *Collector) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime            string `json:"uptime"`
	UptimeSeconds     int64  `json:"uptime_seconds"`
	ConnectionsActive int64  `json:"connections_active"`
	ConnectionsTotal  int64  `json:"connections_total"`
	AuthSucceeded     int64  `json:"auth_succeeded"`
	AuthFailed        int64  `json:"auth_failed"`
	CommandsTotal     int64  `json:"commands_total"`
	ShutdownRequests  int64  `json:"shutdown_requests"`
	WatchdogRestarts  int64  `json:"watchdog_restarts"`
	ErrorsTotal       int64  `json:"errors_total"`
	LastActivity      string `json:"last_activity,omitempty"`
	LastError         string `json:"last_error,omitempty"`
	LastErrorMessage  string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	uptime := time.Since(c.startTime)
	s := Snapshot{
		Uptime:            uptime.Truncate(time.Second).String(),
		UptimeSeconds:     int64(uptime / time.Second),
		ConnectionsActive: c.connectionsActive.Load(),
		ConnectionsTotal:  c.connectionsTotal.Load(),
		AuthSucceeded:     c.authSucceeded.Load(),
		AuthFailed:        c.authFailed.Load(),
		CommandsTotal:     c.commandsTotal.Load(),
		ShutdownRequests:  c.shutdownRequests.Load(),
		WatchdogRestarts:  c.watchdogRestarts.Load(),
		ErrorsTotal:       c.errorsTotal.Load(),
	}
	if !c.lastActivity.IsZero() {
		s.LastActivity = c.lastActivity.Format(time.RFC3339)
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as a single-line JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.Marshal(s)
	return string(data)
}
