// Package metrics counts claims and uploads for one invocation and can write
// them out for the node exporter textfile collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "samsunggrab"

type Metrics struct {
	registry *prometheus.Registry

	TasksClaimed  prometheus.Counter
	ServerErrors  *prometheus.CounterVec
	Uploads       *prometheus.CounterVec
	UploadedBytes prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		TasksClaimed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_claimed_total",
			Help:      "Tasks received from the coordination server.",
		}),
		ServerErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_errors_total",
			Help:      "Error or unrecognized replies from the coordination server.",
		}, []string{"op"}),
		Uploads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Upload attempts by outcome.",
		}, []string{"result"}),
		UploadedBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_bytes_total",
			Help:      "Bytes of confirmed uploads.",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// WriteTextfile writes all metrics to path atomically. An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
