// Package bridge implements the request/response correlation core between
// the HTTP gateway and the extension's byte-stream channel.
//
// Any number of gateway goroutines may invoke calls concurrently over the
// single channel. Each request gets a unique ID, and one background reader
// goroutine routes responses back to the matching caller:
//
//	handler-1 ──Invoke(id=1)──┐
//	handler-2 ──Invoke(id=2)──┼──→ single channel ──→ extension
//	handler-3 ──Invoke(id=3)──┘
//
//	reader loop: ←── response(id=2) → pending[2] slot → handler-2 wakes up
//
// Responses may arrive in any order; the correlator guarantees each one
// reaches only the caller that sent the matching request.
package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/juju/clock"
	"go.uber.org/zap"
	"gopkg.in/tomb.v2"

	"browser-bridge/message"
	"browser-bridge/metrics"
	"browser-bridge/protocol"
	"browser-bridge/transport"
)

const (
	// DefaultCallTimeout bounds how long a caller waits for the extension.
	DefaultCallTimeout = 30 * time.Second
	// DefaultReconnectDelay is the pause between read attempts after the
	// channel reaches end of stream.
	DefaultReconnectDelay = time.Second
)

// Options configures a Bridge. The zero value gets sensible defaults.
type Options struct {
	CallTimeout    time.Duration
	ReconnectDelay time.Duration
	Clock          clock.Clock
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
}

// Bridge ties the channel, the correlator, and the connection monitor
// together behind one call surface. Construct it with New, start the reader
// loop with Start, and shut it down with Stop.
type Bridge struct {
	channel    transport.Channel
	correlator *Correlator
	monitor    *Monitor
	clock      clock.Clock
	logger     *zap.Logger
	metrics    *metrics.Metrics

	callTimeout    time.Duration
	reconnectDelay time.Duration

	// sending serializes whole-frame writes. Many handler goroutines share
	// the channel; without this lock their frames would interleave
	// byte-for-byte and corrupt the stream.
	sending sync.Mutex

	tomb tomb.Tomb
}

func New(ch transport.Channel, opts Options) *Bridge {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.Clock == nil {
		opts.Clock = clock.WallClock
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}

	return &Bridge{
		channel:        ch,
		correlator:     NewCorrelator(),
		monitor:        NewMonitor(opts.Logger, opts.Metrics),
		clock:          opts.Clock,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
		callTimeout:    opts.CallTimeout,
		reconnectDelay: opts.ReconnectDelay,
	}
}

// Start launches the reader loop. Call it exactly once.
func (b *Bridge) Start() {
	b.tomb.Go(b.loop)
}

// Stop kills the reader loop and closes the channel, unblocking any read in
// progress, then waits for the loop to exit.
func (b *Bridge) Stop() error {
	b.tomb.Kill(nil)
	b.channel.Close()
	return b.tomb.Wait()
}

// IsConnected reports whether the extension is believed reachable.
func (b *Bridge) IsConnected() bool {
	return b.monitor.IsConnected()
}

// PendingCalls returns the number of requests awaiting a response.
func (b *Bridge) PendingCalls() int {
	return b.correlator.Pending()
}

// Invoke sends one request to the extension and blocks until its response
// arrives, the call timeout elapses, or ctx is canceled.
//
// It fails fast with ErrNotConnected while the extension is unreachable —
// there is no point parking the caller for a timeout that cannot succeed.
// A timed-out call reaps its own waiter so the late response, if it ever
// comes, is dropped without touching anyone else's call.
func (b *Bridge) Invoke(ctx context.Context, method string, params any) (result []byte, err error) {
	if !b.monitor.IsConnected() {
		b.metrics.Calls.WithLabelValues(metrics.OutcomeNotConnected).Inc()
		return nil, ErrNotConnected
	}

	id, slot := b.correlator.Register()
	b.metrics.InflightCalls.Inc()
	defer b.metrics.InflightCalls.Dec()

	req, err := message.NewRequest(id, method, params)
	if err != nil {
		b.correlator.Discard(id)
		b.metrics.Calls.WithLabelValues(metrics.OutcomeWriteError).Inc()
		return nil, err
	}

	b.sending.Lock()
	err = protocol.WriteFrame(b.channel, req)
	b.sending.Unlock()
	if err != nil {
		b.correlator.Discard(id)
		b.metrics.Calls.WithLabelValues(metrics.OutcomeWriteError).Inc()
		return nil, fmt.Errorf("send %s: %w", method, err)
	}
	b.metrics.FramesWritten.Inc()

	b.logger.Debug("request sent", zap.Int("id", id), zap.String("method", method))

	select {
	case resp := <-slot:
		if resp.Error != "" {
			b.metrics.Calls.WithLabelValues(metrics.OutcomeRemoteError).Inc()
			return nil, &RemoteError{Method: method, Message: resp.Error}
		}
		b.metrics.Calls.WithLabelValues(metrics.OutcomeOK).Inc()
		return resp.Result, nil

	case <-b.clock.After(b.callTimeout):
		b.correlator.Discard(id)
		b.metrics.Calls.WithLabelValues(metrics.OutcomeTimeout).Inc()
		b.logger.Warn("request timed out", zap.Int("id", id), zap.String("method", method),
			zap.Duration("timeout", b.callTimeout))
		return nil, ErrTimeout

	case <-ctx.Done():
		b.correlator.Discard(id)
		b.metrics.Calls.WithLabelValues(metrics.OutcomeCanceled).Inc()
		return nil, ctx.Err()
	}
}
