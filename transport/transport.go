// Package transport provides the byte-stream channels the bridge speaks over.
//
// The bridge itself only needs a Channel: one bidirectional byte stream that
// carries length-prefixed frames. Two implementations exist:
//
//   - Stdio: the classic native-messaging pipe, used when the browser
//     launches the host process directly.
//   - WSServer: a WebSocket endpoint presented as the same byte stream, used
//     when the browser runs sandboxed and cannot spawn the host (the
//     extension dials in instead).
//
// Exactly one channel is active at a time; the bridge never multiplexes
// across peers.
package transport

import (
	"io"
	"os"
)

// Channel is a single bidirectional byte stream to the extension.
//
// Reads are made by one goroutine only (the bridge's reader loop). Writes
// may come from many goroutines but are serialized by the bridge, and each
// Write carries exactly one whole frame.
type Channel = io.ReadWriteCloser

// Pipe is a Channel over separate reader and writer halves.
type Pipe struct {
	R io.Reader
	W io.Writer
}

// Stdio returns the native-messaging channel: frames from the browser arrive
// on stdin and replies leave on stdout. Anything the process wants a human to
// see must go to stderr.
func Stdio() *Pipe {
	return &Pipe{R: os.Stdin, W: os.Stdout}
}

// NewPipe builds a channel from arbitrary halves. Used by the WebSocket
// handshake path and by tests that splice in in-memory pipes.
func NewPipe(r io.Reader, w io.Writer) *Pipe {
	return &Pipe{R: r, W: w}
}

func (p *Pipe) Read(b []byte) (int, error)  { return p.R.Read(b) }
func (p *Pipe) Write(b []byte) (int, error) { return p.W.Write(b) }

// Close closes whichever halves support closing.
func (p *Pipe) Close() error {
	var err error
	if c, ok := p.R.(io.Closer); ok {
		err = c.Close()
	}
	if c, ok := p.W.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
