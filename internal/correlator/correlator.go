// Package correlator implements the client-side request/response
// matching: it allocates request IDs, parks a waiter until the matching
// response arrives, and wakes it on timeout or shutdown.
package correlator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rustyguts/vroom/internal/protocol"
)

// DefaultTimeout is the request correlator's default wait.
const DefaultTimeout = 5 * time.Second

// Sender hands an encoded control frame to the transport. It mirrors
// wire.Conn.Send's signature without importing the wire package, keeping
// the correlator transport-agnostic and easy to unit test with a fake.
type Sender func(payload []byte) error

type result struct {
	resp protocol.ServerResponse
	err  error
}

// Correlator holds the pending-request table for one client connection.
type Correlator struct {
	mu          sync.Mutex
	nextID      uint32
	pending     map[uint32]chan result
	closed      bool
	unsolicited chan protocol.ServerResponse
}

// New returns an empty correlator ready to issue requests and receive
// deliveries.
func New() *Correlator {
	return &Correlator{
		pending:     make(map[uint32]chan result),
		unsolicited: make(chan protocol.ServerResponse, 16),
	}
}

// Unsolicited delivers ServerResponses with request_id = 0: welcome
// banners and other asynchronous server notices never matched to a
// waiter.
func (c *Correlator) Unsolicited() <-chan protocol.ServerResponse { return c.unsolicited }

// Request allocates a request_id, stamps it and msg.UserID onto msg,
// sends it, and waits up to timeout for the matching response.
func (c *Correlator) Request(ctx context.Context, send Sender, msg protocol.ControlMessage, timeout time.Duration) (protocol.ServerResponse, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return protocol.ServerResponse{}, ErrConnectionLost
	}
	c.nextID++
	id := c.nextID
	msg.RequestID = id
	ch := make(chan result, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	payload, err := protocol.EncodeControl(msg)
	if err != nil {
		c.remove(id)
		return protocol.ServerResponse{}, err
	}
	if err := send(payload); err != nil {
		c.remove(id)
		return protocol.ServerResponse{}, fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		return r.resp, r.err
	case <-timer.C:
		c.remove(id)
		return protocol.ServerResponse{}, ErrTimeout
	case <-ctx.Done():
		c.remove(id)
		return protocol.ServerResponse{}, ctx.Err()
	}
}

func (c *Correlator) remove(id uint32) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Deliver hands an inbound ServerResponse to its waiter, or to the
// unsolicited sink if request_id is 0, or drops it if no waiter is
// registered (a late response for an id that already timed out).
func (c *Correlator) Deliver(resp protocol.ServerResponse) {
	if resp.RequestID == 0 {
		select {
		case c.unsolicited <- resp:
		default:
		}
		return
	}
	c.mu.Lock()
	ch, ok := c.pending[resp.RequestID]
	if ok {
		delete(c.pending, resp.RequestID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	ch <- result{resp: resp}
}

// Shutdown wakes every outstanding waiter with ErrConnectionLost and
// rejects any Request issued afterward. Safe to call multiple times.
func (c *Correlator) Shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	pending := c.pending
	c.pending = make(map[uint32]chan result)
	c.mu.Unlock()

	for _, ch := range pending {
		ch <- result{err: ErrConnectionLost}
	}
}
