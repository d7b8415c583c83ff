package metrics

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/common/expfmt"
)

func TestCollector_Connections(t *testing.T) {
	c := New()

	c.ConnectionOpened()
	c.ConnectionOpened()
	if c.ActiveConnections() != 2 {
		t.Errorf("active = %d, want 2", c.ActiveConnections())
	}
	if c.TotalConnections() != 2 {
		t.Errorf("total = %d, want 2", c.TotalConnections())
	}

	c.ConnectionClosed()
	if c.ActiveConnections() != 1 {
		t.Errorf("active = %d, want 1", c.ActiveConnections())
	}
	if c.TotalConnections() != 2 {
		t.Errorf("total should remain 2, got %d", c.TotalConnections())
	}
}

func TestCollector_Auth(t *testing.T) {
	c := New()

	c.AuthSucceeded()
	c.AuthFailed()
	c.AuthFailed()

	if c.AuthSuccesses() != 1 {
		t.Errorf("successes = %d, want 1", c.AuthSuccesses())
	}
	if c.AuthFailures() != 2 {
		t.Errorf("failures = %d, want 2", c.AuthFailures())
	}
}

func TestCollector_ProtocolAndWatchdog(t *testing.T) {
	c := New()

	c.CommandHandled()
	c.CommandHandled()
	c.ShutdownRequested()
	c.WatchdogRestarted()
	c.WatchdogRestarted()
	c.WatchdogRestarted()

	if c.Commands() != 2 {
		t.Errorf("commands = %d, want 2", c.Commands())
	}
	if c.ShutdownRequests() != 1 {
		t.Errorf("shutdown requests = %d, want 1", c.ShutdownRequests())
	}
	if c.WatchdogRestarts() != 3 {
		t.Errorf("watchdog restarts = %d, want 3", c.WatchdogRestarts())
	}
}

func TestCollector_Errors(t *testing.T) {
	c := New()

	c.RecordError("first error")
	c.RecordError("second error")

	if c.ErrorCount() != 2 {
		t.Errorf("errors = %d, want 2", c.ErrorCount())
	}
	if got := c.Snapshot().LastErrorMessage; got != "second error" {
		t.Errorf("last error = %q", got)
	}
}

func TestCollector_JSON(t *testing.T) {
	c := New()
	c.ConnectionOpened()
	c.AuthFailed()

	raw := c.JSON()
	if strings.Contains(raw, "\n") {
		t.Errorf("JSON should be a single line: %q", raw)
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		t.Fatalf("JSON parse error: %v", err)
	}
	if snap.ConnectionsActive != 1 {
		t.Errorf("JSON active = %d", snap.ConnectionsActive)
	}
	if snap.AuthFailed != 1 {
		t.Errorf("JSON auth failed = %d", snap.AuthFailed)
	}
}

func TestCollector_WritePrometheus(t *testing.T) {
	c := New()
	c.ConnectionOpened()
	c.ConnectionOpened()
	c.AuthFailed()
	c.WatchdogRestarted()

	var buf bytes.Buffer
	if err := c.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(&buf)
	if err != nil {
		t.Fatalf("output is not valid exposition format: %v", err)
	}

	tests := map[string]float64{
		"remoteserver_connections_total":       2,
		"remoteserver_connections_active":      2,
		"remoteserver_auth_failed_total":       1,
		"remoteserver_watchdog_restarts_total": 1,
		"remoteserver_shutdown_requests_total": 0,
	}
	for name, want := range tests {
		mf, ok := families[name]
		if !ok {
			t.Errorf("missing family %s", name)
			continue
		}
		m := mf.GetMetric()[0]
		got := m.GetCounter().GetValue() + m.GetGauge().GetValue()
		if got != want {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
}

func TestCollector_WriteFile(t *testing.T) {
	c := New()
	c.ConnectionOpened()

	path := filepath.Join(t.TempDir(), "remoteserver.prom")
	if err := c.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "remoteserver_connections_total 1") {
		t.Errorf("unexpected file contents:\n%s", data)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temporary file left behind: %v", entries)
	}
}

func TestNilCollector_NoOps(t *testing.T) {
	var c *Collector

	// None of these should panic.
	c.ConnectionOpened()
	c.ConnectionClosed()
	c.AuthSucceeded()
	c.AuthFailed()
	c.CommandHandled()
	c.ShutdownRequested()
	c.WatchdogRestarted()
	c.RecordError("test")

	if c.ActiveConnections() != 0 {
		t.Error("nil collector should return 0")
	}
	if c.AuthFailures() != 0 {
		t.Error("nil collector should return 0")
	}
	if c.ErrorCount() != 0 {
		t.Error("nil collector should return 0")
	}

	snap := c.Snapshot()
	if snap.ConnectionsActive != 0 {
		t.Error("nil snapshot should be zero")
	}

	if j := c.JSON(); j == "" {
		t.Error("nil JSON should return valid JSON")
	}

	var buf bytes.Buffer
	if err := c.WritePrometheus(&buf); err != nil {
		t.Errorf("nil WritePrometheus: %v", err)
	}
}
