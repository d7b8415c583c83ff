package metrics

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

// namespace prefixes every exported metric name.
const namespace = "remoteserver"

// Families converts the current snapshot into Prometheus metric
// families.
func (c *Collector) Families() []*dto.MetricFamily {
	s := c.Snapshot()
	return []*dto.MetricFamily{
		counter("connections_total", "Connections accepted, authenticated or not.", s.ConnectionsTotal),
		gauge("connections_active", "Connections currently open.", s.ConnectionsActive),
		counter("auth_succeeded_total", "Clients that presented the right key.", s.AuthSucceeded),
		counter("auth_failed_total", "Clients rejected during authentication.", s.AuthFailed),
		counter("commands_total", "Protocol commands handled.", s.CommandsTotal),
		counter("shutdown_requests_total", "Shutdown requests received from clients.", s.ShutdownRequests),
		counter("watchdog_restarts_total", "Idle watchdog restarts.", s.WatchdogRestarts),
		counter("errors_total", "Errors recorded.", s.ErrorsTotal),
		gauge("uptime_seconds", "Seconds since the server started.", s.UptimeSeconds),
	}
}

// WritePrometheus writes the metrics in the Prometheus text exposition
// format.
func (c *Collector) WritePrometheus(w io.Writer) error {
	for _, mf := range c.Families() {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("encoding %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// WriteFile writes the metrics to path for a node_exporter textfile
// collector.  The file is written to a temporary sibling and renamed so
// scrapers never read a partial file.
func (c *Collector) WriteFile(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("creating metrics file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if err := c.WritePrometheus(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing metrics file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming metrics file into place: %w", err)
	}
	return nil
}

func counter(name, help string, v int64) *dto.MetricFamily {
	return family(name, help, dto.MetricType_COUNTER, &dto.Metric{
		Counter: &dto.Counter{Value: proto.Float64(float64(v))},
	})
}

func gauge(name, help string, v int64) *dto.MetricFamily {
	return family(name, help, dto.MetricType_GAUGE, &dto.Metric{
		Gauge: &dto.Gauge{Value: proto.Float64(float64(v))},
	})
}

func family(name, help string, typ dto.MetricType, m *dto.Metric) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(namespace + "_" + name),
		Help:   proto.String(help),
		Type:   typ.Enum(),
		Metric: []*dto.Metric{m},
	}
}
