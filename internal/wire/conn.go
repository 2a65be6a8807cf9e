// Package wire implements the length-prefixed binary framing layer shared
// by the client and the server: a 4-byte little-endian length header
// followed by the payload, an asynchronous write queue, and a read loop
// that delivers whole payloads on a channel.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/rs/zerolog"
)

const (
	// HeaderSize is the width of the length prefix in bytes.
	HeaderSize = 4

	// DefaultMaxFrame is the recommended MAX_FRAME ceiling (1 MiB).
	DefaultMaxFrame = 1 << 20

	// sendQueueSize bounds the asynchronous write queue. A bounded queue
	// with an explicit Backpressure error beats an unbounded one for a
	// long-lived service.
	sendQueueSize = 256

	// frameQueueSize bounds delivered-but-not-yet-consumed payloads.
	frameQueueSize = 64
)

// Conn is one framed endpoint of a TCP connection. It owns the socket
// exclusively: callers never touch the underlying net.Conn directly, only
// Send/Frames/Err/Close.
type Conn struct {
	conn     net.Conn
	maxFrame uint32
	log      zerolog.Logger

	sendCh chan []byte
	frames chan []byte
	errCh  chan error

	closeOnce sync.Once
	closed    chan struct{}
}

// New wraps an already-established net.Conn and starts its read and write
// loops. maxFrame of 0 selects DefaultMaxFrame.
func New(c net.Conn, maxFrame uint32, log zerolog.Logger) *Conn {
	if maxFrame == 0 {
		maxFrame = DefaultMaxFrame
	}
	wc := &Conn{
		conn:     c,
		maxFrame: maxFrame,
		log:      log,
		sendCh:   make(chan []byte, sendQueueSize),
		frames:   make(chan []byte, frameQueueSize),
		errCh:    make(chan error, 1),
		closed:   make(chan struct{}),
	}
	go wc.readLoop()
	go wc.writeLoop()
	return wc
}

// Send enqueues payload for transmission. It never blocks: if the write
// queue is saturated it returns ErrBackpressure, and if the connection has
// already failed it returns ErrNotConnected. Frame ordering for a single
// caller is preserved by the single serial writeLoop.
func (c *Conn) Send(payload []byte) error {
	select {
	case <-c.closed:
		return ErrNotConnected
	default:
	}
	select {
	case c.sendCh <- payload:
		return nil
	default:
		return ErrBackpressure
	}
}

// Frames delivers decoded frame payloads in receipt order.
func (c *Conn) Frames() <-chan []byte { return c.frames }

// Err delivers exactly one value when the connection terminates, whether
// from a clean close (ErrConnectionLost), a protocol violation
// (ErrFrameTooLarge), or an underlying I/O error.
func (c *Conn) Err() <-chan error { return c.errCh }

// Close half-closes the connection and causes both loops to exit. It is
// safe to call multiple times and from any goroutine.
func (c *Conn) Close() error {
	c.fail(nil)
	return nil
}

// fail tears the connection down exactly once. A nil err models a clean,
// expected shutdown (Close called by the owner); callers that detect an
// actual failure pass the concrete error.
func (c *Conn) fail(err error) {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
		if err == nil {
			err = ErrConnectionLost
		}
		c.errCh <- err
	})
}

func (c *Conn) writeLoop() {
	for {
		select {
		case payload := <-c.sendCh:
			if err := c.writeFrame(payload); err != nil {
				c.fail(fmt.Errorf("wire: write: %w", err))
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *Conn) writeFrame(payload []byte) error {
	var header [HeaderSize]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := c.conn.Write(header[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := c.conn.Write(payload)
	return err
}

func (c *Conn) readLoop() {
	defer close(c.frames)
	var header [HeaderSize]byte
	for {
		if _, err := io.ReadFull(c.conn, header[:]); err != nil {
			if err == io.EOF {
				// Clean close at a frame boundary.
				c.fail(nil)
			} else {
				c.fail(fmt.Errorf("wire: read header: %w", err))
			}
			return
		}
		n := binary.LittleEndian.Uint32(header[:])
		if n > c.maxFrame {
			c.fail(ErrFrameTooLarge)
			return
		}
		payload := make([]byte, n)
		if n > 0 {
			if _, err := io.ReadFull(c.conn, payload); err != nil {
				// EOF mid-frame is always an error, never a clean close.
				c.fail(fmt.Errorf("wire: read payload: %w", err))
				return
			}
		}
		select {
		case c.frames <- payload:
		case <-c.closed:
			return
		}
	}
}

// RemoteAddr exposes the underlying socket's remote address, used for
// logging and as a fallback seed when no other identifier is available.
func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }
