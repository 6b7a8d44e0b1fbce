package bridge

import (
	"errors"
	"fmt"
)

// ErrNotConnected means the extension is unreachable right now. Calls fail
// fast with it instead of burning a full timeout.
var ErrNotConnected = errors.New("bridge: extension not connected")

// ErrTimeout means the request was sent but no response arrived within the
// configured bound. The waiter has already been reaped; a late response will
// be discarded silently.
var ErrTimeout = errors.New("bridge: request timed out")

// RemoteError is a failure the extension explicitly reported for one
// request. Message carries the extension's text verbatim.
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("bridge: %s failed in extension: %s", e.Method, e.Message)
}
