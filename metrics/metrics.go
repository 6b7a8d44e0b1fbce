// Package metrics exposes the bridge's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Call outcome label values.
const (
	OutcomeOK           = "ok"
	OutcomeRemoteError  = "remote_error"
	OutcomeTimeout      = "timeout"
	OutcomeNotConnected = "not_connected"
	OutcomeWriteError   = "write_error"
	OutcomeCanceled     = "canceled"
)

// Metrics holds the collectors for one bridge instance. Everything is
// registered on a private registry so tests can run bridges side by side
// without duplicate-registration panics.
type Metrics struct {
	registry *prometheus.Registry

	FramesRead    prometheus.Counter
	FramesWritten prometheus.Counter
	DecodeErrors  prometheus.Counter
	Disconnects   prometheus.Counter
	Connected     prometheus.Gauge
	Calls         *prometheus.CounterVec
	InflightCalls prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FramesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_frames_read_total",
			Help: "Frames successfully decoded from the extension channel.",
		}),
		FramesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_frames_written_total",
			Help: "Frames written to the extension channel.",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_decode_errors_total",
			Help: "Complete frames whose body was not valid JSON.",
		}),
		Disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_disconnects_total",
			Help: "Times the extension channel reached end of stream or a framing fault.",
		}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bridge_extension_connected",
			Help: "1 while the extension is believed reachable.",
		}),
		Calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_calls_total",
			Help: "Extension calls by outcome.",
		}, []string{"outcome"}),
		InflightCalls: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bridge_inflight_calls",
			Help: "Calls currently awaiting a response.",
		}),
	}

	m.registry.MustRegister(
		m.FramesRead, m.FramesWritten, m.DecodeErrors, m.Disconnects,
		m.Connected, m.Calls, m.InflightCalls,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
