package bridge

import (
	"sync/atomic"

	"go.uber.org/zap"

	"browser-bridge/metrics"
)

// Monitor tracks whether the extension is currently reachable.
//
// The flag starts false and is mutated only by the reader loop: any
// successfully decoded frame proves the peer is alive, and end of stream
// proves it is gone. Everyone else (the gateway, the health endpoint) only
// reads it.
type Monitor struct {
	connected atomic.Bool
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func NewMonitor(logger *zap.Logger, m *metrics.Metrics) *Monitor {
	return &Monitor{logger: logger, metrics: m}
}

// MarkConnected records liveness. Called after every successful frame read,
// so it must be cheap and only log on the actual transition.
func (m *Monitor) MarkConnected() {
	if m.connected.CompareAndSwap(false, true) {
		m.logger.Info("extension connected")
		m.metrics.Connected.Set(1)
	}
}

// MarkDisconnected records loss of the peer.
func (m *Monitor) MarkDisconnected() {
	if m.connected.CompareAndSwap(true, false) {
		m.logger.Warn("extension disconnected")
		m.metrics.Connected.Set(0)
	}
}

// IsConnected is a non-blocking read of the liveness flag.
func (m *Monitor) IsConnected() bool {
	return m.connected.Load()
}
