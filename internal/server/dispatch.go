package server

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rustyguts/vroom/internal/protocol"
	"github.com/rustyguts/vroom/internal/registry"
	"github.com/rustyguts/vroom/internal/wire"
)

func (h *Hub) handleConn(ctx context.Context, clientID string, conn *wire.Conn) {
	log := h.log.With().Str("client_id", clientID).Logger()
	sess := newSession(clientID, conn)
	h.addSession(sess)
	h.registry.Connect(clientID)
	log.Info().Msg("client connected")

	defer func() {
		h.registry.Disconnect(clientID)
		h.removeSession(clientID)
		_ = conn.Close()
		log.Info().Msg("client disconnected")
	}()

	h.sendWelcome(sess)

	for {
		select {
		case payload, ok := <-conn.Frames():
			if !ok {
				return
			}
			h.handleFrame(sess, payload, log)
		case err := <-conn.Err():
			if err != nil {
				log.Debug().Err(err).Msg("connection ended")
			}
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) sendWelcome(sess *session) {
	resp := protocol.ServerResponse{
		Status:    protocol.StatusSuccess,
		Message:   "welcome to vroom, you have been placed in the main channel",
		RequestID: 0,
	}
	h.sendResponse(sess, resp)
}

func (h *Hub) handleFrame(sess *session, payload []byte, log zerolog.Logger) {
	decoded, err := protocol.Decode(payload)
	if err != nil {
		log.Warn().Err(err).Msg("dropping undecodable frame")
		return
	}

	switch msg := decoded.(type) {
	case protocol.ControlMessage:
		sess.setUserID(msg.UserID)
		h.handleControl(sess, msg)
	case protocol.AudioFrame:
		h.handleAudio(sess, payload)
	case protocol.ServerResponse:
		// A client never sends a ServerResponse; treat it as a decode
		// failure rather than closing the connection.
		log.Warn().Msg("dropping unexpected ServerResponse from client")
	default:
		log.Warn().Msg("dropping frame of unrecognized type")
	}
}

func (h *Hub) handleControl(sess *session, msg protocol.ControlMessage) {
	switch msg.Type {
	case protocol.ControlListRooms:
		listing := RenderListing(h.displaySnapshot())
		h.sendResponse(sess, protocol.ServerResponse{
			Status:    protocol.StatusSuccess,
			Message:   listing,
			RequestID: msg.RequestID,
		})
	case protocol.ControlJoin:
		room := h.registry.Join(sess.clientID, msg.RoomID)
		h.sendResponse(sess, protocol.ServerResponse{
			Status:    protocol.StatusSuccess,
			Message:   fmt.Sprintf("joined %s", room),
			RequestID: msg.RequestID,
		})
	case protocol.ControlLeave:
		h.registry.Leave(sess.clientID)
		h.sendResponse(sess, protocol.ServerResponse{
			Status:    protocol.StatusSuccess,
			Message:   "left to main",
			RequestID: msg.RequestID,
		})
	case protocol.ControlMute, protocol.ControlUnmute:
		muted := msg.Type == protocol.ControlMute
		sess.setMuted(muted)
		text := "unmuted"
		if muted {
			text = "muted"
		}
		h.sendResponse(sess, protocol.ServerResponse{
			Status:    protocol.StatusSuccess,
			Message:   text,
			RequestID: msg.RequestID,
		})
	default:
		h.sendResponse(sess, protocol.ServerResponse{
			Status:    protocol.StatusError,
			Message:   "unknown control type",
			RequestID: msg.RequestID,
		})
	}
}

// handleAudio fans the original frame payload out to every other member
// of the sender's room, unmodified — the server forwards verbatim rather
// than decoding and re-encoding. Frames from a sender muted via MUTE
// are dropped before fan-out. Per-peer send failures are isolated:
// one dead or backpressured peer is disconnected on its own
// connection's error path and never blocks delivery to the rest.
func (h *Hub) handleAudio(sess *session, payload []byte) {
	if sess.isMuted() {
		return
	}
	room, ok := h.registry.RoomOf(sess.clientID)
	if !ok {
		return
	}
	peers := h.registry.Peers(room, sess.clientID)
	for _, peerID := range peers {
		peer, ok := h.sessionFor(peerID)
		if !ok {
			continue
		}
		if err := peer.conn.Send(payload); err != nil {
			h.log.Debug().Str("peer", peerID).Err(err).Msg("audio send failed, peer connection will close on its own error path")
		}
	}
}

func (h *Hub) sendResponse(sess *session, resp protocol.ServerResponse) {
	payload, err := protocol.EncodeResponse(resp)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to encode response")
		return
	}
	if err := sess.conn.Send(payload); err != nil {
		h.log.Debug().Str("client_id", sess.clientID).Err(err).Msg("response send failed")
	}
}

// displaySnapshot translates the registry's client_id-keyed snapshot into
// one keyed by each member's cached user_id, falling back to the raw
// client_id for a peer that hasn't sent a control message yet.
func (h *Hub) displaySnapshot() []registry.RoomSnapshot {
	raw := h.registry.Snapshot()
	out := make([]registry.RoomSnapshot, len(raw))
	for i, rs := range raw {
		members := make([]string, len(rs.Members))
		for j, clientID := range rs.Members {
			if sess, ok := h.sessionFor(clientID); ok {
				members[j] = sess.displayID()
			} else {
				members[j] = clientID
			}
		}
		out[i] = registry.RoomSnapshot{RoomID: rs.RoomID, Members: members}
	}
	return out
}
