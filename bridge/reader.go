package bridge

import (
	"errors"

	"github.com/juju/retry"
	"go.uber.org/zap"
	"gopkg.in/tomb.v2"

	"browser-bridge/protocol"
)

// loop is the reader loop: the only goroutine that reads the channel.
//
// It alternates between two states. While Reading, readStream decodes frames
// and hands them to the correlator. When the stream ends or a framing fault
// loses the frame boundary, the loop marks the extension disconnected and
// Pauses for the reconnect delay before reading again. There is no terminal
// state short of Stop: a disconnected extension is expected to come back,
// and the process outlives it.
//
// The pause-and-retry cycle is driven by retry.Call so the delay is bound to
// the bridge clock and the loop stays observable and interruptible, rather
// than an unconditional sleep buried in the loop body.
func (b *Bridge) loop() error {
	err := retry.Call(retry.CallArgs{
		Func:     b.readStream,
		Attempts: retry.UnlimitedAttempts,
		Delay:    b.reconnectDelay,
		Clock:    b.clock,
		Stop:     b.tomb.Dying(),
		NotifyFunc: func(lastError error, attempt int) {
			if errors.Is(lastError, protocol.ErrEndOfStream) {
				b.logger.Info("channel closed, waiting for extension",
					zap.Duration("retry_in", b.reconnectDelay))
				return
			}
			b.logger.Warn("channel read failed, waiting for extension",
				zap.Error(lastError), zap.Duration("retry_in", b.reconnectDelay))
		},
	})
	if retry.IsRetryStopped(err) {
		return tomb.ErrDying
	}
	return err
}

// readStream decodes frames until the stream breaks, delivering each message
// to its waiter. Returning an error sends the loop into its Paused state.
func (b *Bridge) readStream() error {
	for {
		msg, err := protocol.ReadFrame(b.channel)
		if err != nil {
			var decodeErr *protocol.DecodeError
			if errors.As(err, &decodeErr) {
				// The frame boundary held; only the body was garbage.
				// The stream is still healthy, so keep reading.
				b.logger.Warn("discarding malformed frame", zap.Error(err))
				b.metrics.DecodeErrors.Inc()
				continue
			}
			b.monitor.MarkDisconnected()
			b.metrics.Disconnects.Inc()
			return err
		}

		b.monitor.MarkConnected()
		b.metrics.FramesRead.Inc()

		if !b.correlator.Deliver(msg) {
			// Unknown ID, reaped waiter, or a peer notification.
			// Dropping these silently is the contract.
			b.logger.Debug("dropping unsolicited message",
				zap.Int("id", msg.ID), zap.String("method", msg.Method))
		}
	}
}
