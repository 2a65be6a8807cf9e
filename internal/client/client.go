// Package client implements the client-side request correlator wiring
// (C3) around the shared frame transport: it issues JOIN/LEAVE/LIST_ROOMS
// requests, routes inbound audio to a playback sink, and exposes a
// send path for outbound audio from the capture pipeline.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyguts/vroom/internal/correlator"
	"github.com/rustyguts/vroom/internal/protocol"
	"github.com/rustyguts/vroom/internal/wire"
)

// audioQueueSize bounds inbound audio awaiting playback; once full the
// oldest queued frame is dropped rather than blocking the read loop.
const audioQueueSize = 64

// Client is one connected session from the client's point of view.
type Client struct {
	userID string
	conn   *wire.Conn
	corr   *correlator.Correlator
	log    zerolog.Logger

	mu    sync.RWMutex
	muted bool

	audioCh chan protocol.AudioFrame
}

// Dial connects to addr and starts the background read loop that feeds
// the correlator and the audio playback queue.
func Dial(ctx context.Context, addr, userID string, log zerolog.Logger) (*Client, error) {
	conn, err := wire.Dial(ctx, addr, 0, log)
	if err != nil {
		return nil, err
	}
	c := &Client{
		userID:  userID,
		conn:    conn,
		corr:    correlator.New(),
		log:     log,
		audioCh: make(chan protocol.AudioFrame, audioQueueSize),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	for {
		select {
		case payload, ok := <-c.conn.Frames():
			if !ok {
				return
			}
			c.handleFrame(payload)
		case err := <-c.conn.Err():
			if err != nil {
				c.log.Debug().Err(err).Msg("connection ended")
			}
			c.corr.Shutdown()
			return
		}
	}
}

func (c *Client) handleFrame(payload []byte) {
	decoded, err := protocol.Decode(payload)
	if err != nil {
		c.log.Warn().Err(err).Msg("dropping undecodable frame")
		return
	}
	switch msg := decoded.(type) {
	case protocol.ServerResponse:
		c.corr.Deliver(msg)
	case protocol.AudioFrame:
		c.enqueueAudio(msg)
	default:
		c.log.Warn().Msg("dropping unexpected frame type from server")
	}
}

func (c *Client) enqueueAudio(frame protocol.AudioFrame) {
	select {
	case c.audioCh <- frame:
		return
	default:
	}
	// Queue full: drop the oldest queued frame, never the newest, then
	// retry once.
	select {
	case <-c.audioCh:
	default:
	}
	select {
	case c.audioCh <- frame:
	default:
	}
}

// AudioFrames delivers decoded inbound audio for the playback pipeline to
// consume.
func (c *Client) AudioFrames() <-chan protocol.AudioFrame { return c.audioCh }

// Unsolicited delivers server-initiated responses (welcome banners).
func (c *Client) Unsolicited() <-chan protocol.ServerResponse { return c.corr.Unsolicited() }

// ListRooms issues a LIST_ROOMS request and returns the raw listing
// string; ParseListing decodes it further.
func (c *Client) ListRooms(ctx context.Context) (string, error) {
	resp, err := c.request(ctx, protocol.ControlMessage{Type: protocol.ControlListRooms})
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Join requests membership in room ("" selects main).
func (c *Client) Join(ctx context.Context, room string) (string, error) {
	resp, err := c.request(ctx, protocol.ControlMessage{Type: protocol.ControlJoin, RoomID: room})
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Leave requests a return to the main channel.
func (c *Client) Leave(ctx context.Context) (string, error) {
	resp, err := c.request(ctx, protocol.ControlMessage{Type: protocol.ControlLeave})
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Mute stops sending audio locally and asks the server to drop any frame
// that still slips through, so the gate holds on both ends.
func (c *Client) Mute(ctx context.Context) (string, error) {
	c.SetMuted(true)
	resp, err := c.request(ctx, protocol.ControlMessage{Type: protocol.ControlMute})
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Unmute resumes sending audio and clears the server-side gate.
func (c *Client) Unmute(ctx context.Context) (string, error) {
	resp, err := c.request(ctx, protocol.ControlMessage{Type: protocol.ControlUnmute})
	if err != nil {
		return "", err
	}
	c.SetMuted(false)
	return resp.Message, nil
}

func (c *Client) request(ctx context.Context, msg protocol.ControlMessage) (protocol.ServerResponse, error) {
	msg.UserID = c.userID
	resp, err := c.corr.Request(ctx, c.conn.Send, msg, correlator.DefaultTimeout)
	if err != nil {
		return protocol.ServerResponse{}, err
	}
	if resp.Status == protocol.StatusError {
		return resp, fmt.Errorf("server error: %s", resp.Message)
	}
	return resp, nil
}

// SetMuted toggles whether the capture pipeline's frames are sent.
func (c *Client) SetMuted(muted bool) {
	c.mu.Lock()
	c.muted = muted
	c.mu.Unlock()
}

// Muted reports the current local mute state.
func (c *Client) Muted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.muted
}

// SendAudio wraps opusData in an AudioFrame and sends it. A muted client
// silently drops the frame. Backpressure on the write queue is likewise
// non-fatal: the caller already applied drop-oldest at the pipeline
// level, so a queue-full error at this layer is swallowed.
func (c *Client) SendAudio(opusData []byte) error {
	if c.Muted() {
		return nil
	}
	frame := protocol.AudioFrame{
		UserID:       c.userID,
		AudioPayload: opusData,
		Timestamp:    time.Now().UnixNano(),
	}
	payload, err := protocol.EncodeAudio(frame)
	if err != nil {
		return err
	}
	if err := c.conn.Send(payload); err != nil {
		if errors.Is(err, wire.ErrBackpressure) {
			return nil
		}
		return err
	}
	return nil
}

// Close tears down the connection and wakes any pending requests.
func (c *Client) Close() error {
	c.corr.Shutdown()
	return c.conn.Close()
}
