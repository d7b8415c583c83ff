package metrics

import (
	"io"
	"testing"
)

// BenchmarkCollector_Handshake measures the counters one authenticated
// connection touches.
func BenchmarkCollector_Handshake(b *testing.B) {
	c := New()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.ConnectionOpened()
		c.AuthSucceeded()
		c.WatchdogRestarted()
		c.ConnectionClosed()
	}
}

// BenchmarkCollector_Parallel hits the counters from every P, as the
// listener's per-connection goroutines do.
func BenchmarkCollector_Parallel(b *testing.B) {
	c := New()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			c.ConnectionOpened()
			c.AuthFailed()
		}
	})
}

func BenchmarkCollector_Snapshot(b *testing.B) {
	c := New()
	c.ConnectionOpened()
	c.AuthFailed()
	c.RecordError("handshake")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Snapshot()
	}
}

func BenchmarkCollector_WritePrometheus(b *testing.B) {
	c := New()
	c.ConnectionOpened()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.WritePrometheus(io.Discard)
	}
}
