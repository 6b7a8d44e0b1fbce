// Package protocol implements the native-messaging frame codec.
//
// The browser's native-messaging channel is a raw byte stream, so message
// boundaries must be recovered by the receiver. Each message is framed with a
// fixed-size length prefix followed by a variable-length JSON body. The
// receiver reads the prefix first to learn the body length, then reads exactly
// that many bytes.
//
// Frame format:
//
//	0        4
//	┌────────┬──────────────────┐
//	│ length │  JSON body ...   │
//	│ uint32 │   length bytes   │
//	└────────┴──────────────────┘
//
// The length field is encoded in the platform's native byte order. This is a
// wire contract with the browser: Chrome and Firefox write native-endian
// lengths on the extension side of the pipe, and both ends always run on the
// same machine.
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"browser-bridge/message"
)

// LengthSize is the size of the frame length prefix in bytes.
const LengthSize = 4

// MaxFrameSize caps the body length accepted from the peer. A length beyond
// this is treated as stream corruption rather than a huge allocation: once
// the prefix is wrong there is no way to find the next frame boundary.
const MaxFrameSize = 64 << 20

// ErrEndOfStream reports that the peer closed the channel before the next
// frame started. This is the normal disconnect path, not a protocol fault.
var ErrEndOfStream = errors.New("protocol: end of stream")

// FramingError reports a stream-level fault: a frame that started but could
// not be completed, or a length prefix that cannot be trusted. The stream
// position is lost after a FramingError; the caller must treat the channel
// as disconnected.
type FramingError struct {
	Reason string
	Err    error
}

func (e *FramingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("protocol: %s", e.Reason)
}

func (e *FramingError) Unwrap() error { return e.Err }

// DecodeError reports a complete frame whose body is not valid JSON. The
// frame boundary itself was intact, so the stream remains usable and the
// caller may keep reading.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("protocol: invalid JSON body: %v", e.Err) }

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodingError reports a value that could not be serialized for sending.
type EncodingError struct {
	Err error
}

func (e *EncodingError) Error() string { return fmt.Sprintf("protocol: encode: %v", e.Err) }

func (e *EncodingError) Unwrap() error { return e.Err }

// Encode serializes v to JSON and prepends the native-endian length prefix,
// returning the complete frame.
func Encode(v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, &EncodingError{Err: err}
	}
	frame := make([]byte, LengthSize+len(body))
	binary.NativeEndian.PutUint32(frame[:LengthSize], uint32(len(body)))
	copy(frame[LengthSize:], body)
	return frame, nil
}

// WriteFrame encodes v and writes the whole frame to w in a single Write
// call, so that a writer serialized by one mutex never interleaves partial
// frames from concurrent senders.
func WriteFrame(w io.Writer, v any) error {
	frame, err := Encode(v)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return &FramingError{Reason: "write frame", Err: err}
	}
	return nil
}

// ReadFrame reads exactly one frame from r and decodes its body.
//
// It blocks until a full frame is available. A stream that ends before the
// length prefix completes yields ErrEndOfStream; a stream that ends inside
// the body, or a length prefix beyond MaxFrameSize, yields a *FramingError;
// a complete frame with an invalid JSON body yields a *DecodeError.
func ReadFrame(r io.Reader) (*message.Message, error) {
	var prefix [LengthSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrEndOfStream
		}
		return nil, &FramingError{Reason: "read length prefix", Err: err}
	}

	length := binary.NativeEndian.Uint32(prefix[:])
	if length > MaxFrameSize {
		return nil, &FramingError{Reason: fmt.Sprintf("frame length %d exceeds limit %d", length, MaxFrameSize)}
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		// EOF mid-body means the peer died between prefix and body.
		// Unlike a clean close before the prefix, part of a frame was
		// consumed, so this is a framing fault.
		return nil, &FramingError{Reason: "read frame body", Err: err}
	}

	var msg message.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return &msg, nil
}
