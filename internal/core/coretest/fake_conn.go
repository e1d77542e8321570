// Package coretest provides in-memory transports for tests.
package coretest

import (
	"encoding/json"
	"sync"

	"github.com/dkeye/meetsync/internal/core"
)

// FakeConn records frames instead of writing them to a socket.
type FakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
	// Fail makes every TrySend return core.ErrBackpressure.
	Fail bool
}

func NewFakeConn() *FakeConn { return &FakeConn{} }

func (c *FakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	if c.Fail {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, append(core.Frame(nil), f...))
	return nil
}

func (c *FakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *FakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Messages decodes every recorded frame as a generic envelope.
func (c *FakeConn) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, 0, len(c.frames))
	for _, f := range c.frames {
		var m Message
		if err := json.Unmarshal(f, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// OfType returns the decoded messages with the given type, in delivery order.
func (c *FakeConn) OfType(typ string) []Message {
	var out []Message
	for _, m := range c.Messages() {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

func (c *FakeConn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Decode unmarshals the payload into v and panics on malformed test data.
func (m Message) Decode(v any) {
	if err := json.Unmarshal(m.Payload, v); err != nil {
		panic(err)
	}
}
