package bridge

import (
	"sync"

	"browser-bridge/message"
)

// Correlator owns the table of in-flight requests awaiting a response.
//
// Each request gets a unique ID and a buffered delivery slot. The reader
// loop routes incoming responses to the slot registered under their ID;
// timed-out callers reap their own slot. Both paths remove the entry under
// the same mutex, so for any given ID exactly one of {delivery, reaping}
// wins — a response racing a timeout can never be handed to a waiter that
// is already gone, and a late response simply finds no entry.
//
// The mutex guards only table mutation. Waiting for the response happens on
// the per-request channel, outside the lock, so slow calls do not serialize
// each other.
type Correlator struct {
	mu      sync.Mutex
	nextID  int
	pending map[int]chan *message.Message
}

func NewCorrelator() *Correlator {
	return &Correlator{pending: make(map[int]chan *message.Message)}
}

// Register allocates a fresh request ID and its delivery slot. The slot is
// buffered so the reader loop never blocks handing off a response.
func (c *Correlator) Register() (int, <-chan *message.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	ch := make(chan *message.Message, 1)
	c.pending[id] = ch
	return id, ch
}

// take removes and returns the slot for id, if present.
func (c *Correlator) take(id int) (chan *message.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	return ch, ok
}

// Discard drops the waiter for id, typically after its timeout fired. A
// response arriving later finds no entry and is dropped.
func (c *Correlator) Discard(id int) {
	c.take(id)
}

// Deliver routes a response to the waiter registered under its ID and
// reports whether anyone was waiting. Messages with no ID (peer-initiated
// notifications) and IDs with no waiter (already timed out, or never ours)
// are dropped; neither is an error for the reader loop.
func (c *Correlator) Deliver(msg *message.Message) bool {
	if msg.ID == 0 {
		return false
	}
	ch, ok := c.take(msg.ID)
	if !ok {
		return false
	}
	// Cannot block: the slot is buffered and take guarantees we are the
	// only sender for this ID.
	ch <- msg
	return true
}

// Pending returns the number of requests still awaiting a response.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
