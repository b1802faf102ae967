package download

import (
	"time"

	"github.com/rcrowley/go-metrics"
)

type managerMetrics struct {
	registry metrics.Registry

	Tasks         metrics.Gauge
	Active        metrics.Counter
	Succeeded     metrics.Counter
	Failed        metrics.Counter
	Cancelled     metrics.Counter
	Retried       metrics.Counter
	Uptime        metrics.Gauge
	SpeedDownload metrics.Meter
}

func (m *Manager) initMetrics() {
	r := metrics.NewRegistry()
	m.metrics = &managerMetrics{
		registry: r,

		Tasks: metrics.NewRegisteredFunctionalGauge("tasks", r, func() int64 {
			m.m.RLock()
			defer m.m.RUnlock()
			return int64(len(m.tasks))
		}),
		Active:        metrics.NewRegisteredCounter("active", r),
		Succeeded:     metrics.NewRegisteredCounter("succeeded", r),
		Failed:        metrics.NewRegisteredCounter("failed", r),
		Cancelled:     metrics.NewRegisteredCounter("cancelled", r),
		Retried:       metrics.NewRegisteredCounter("retried", r),
		Uptime:        metrics.NewRegisteredFunctionalGauge("uptime", r, func() int64 { return int64(time.Since(m.createdAt) / time.Second) }),
		SpeedDownload: metrics.NewRegisteredMeter("speed_download", r),
	}
}

func (m *managerMetrics) transition(from, to State) {
	if to == Active {
		m.Active.Inc(1)
	}
	if from == Active {
		m.Active.Dec(1)
	}
	switch to {
	case Succeeded:
		m.Succeeded.Inc(1)
	case Failed:
		m.Failed.Inc(1)
	case Cancelled:
		m.Cancelled.Inc(1)
	}
}

func (m *managerMetrics) downloaded(n int64) {
	if n > 0 {
		m.SpeedDownload.Mark(n)
	}
}

func (m *managerMetrics) Close() {
	m.SpeedDownload.Stop()
}

// Stats contains statistics about the Manager.
type Stats struct {
	// Number of unfinished tasks.
	Tasks int
	// Number of tasks that are being downloaded.
	Active int
	// Number of tasks finished since the Manager is created.
	Succeeded int64
	Failed    int64
	Cancelled int64
	// Number of times failed tasks are queued again.
	Retried int64
	// Total bytes received from servers.
	BytesDownloaded int64
	// Download speed in bytes per second. Average of last minute.
	SpeedDownload int64
	// Seconds since the Manager is created.
	Uptime int64
}

// Stats returns statistics about the Manager.
func (m *Manager) Stats() Stats {
	return Stats{
		Tasks:           int(m.metrics.Tasks.Value()),
		Active:          int(m.metrics.Active.Count()),
		Succeeded:       m.metrics.Succeeded.Count(),
		Failed:          m.metrics.Failed.Count(),
		Cancelled:       m.metrics.Cancelled.Count(),
		Retried:         m.metrics.Retried.Count(),
		BytesDownloaded: m.metrics.SpeedDownload.Count(),
		SpeedDownload:   int64(m.metrics.SpeedDownload.Rate1()),
		Uptime:          m.metrics.Uptime.Value(),
	}
}
