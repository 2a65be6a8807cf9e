package protocol

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates which of the three message variants an envelope
// carries. The wire format uses an explicit tag rather than
// try-each-variant-in-order.
type Kind uint8

const (
	KindControl Kind = iota
	KindResponse
	KindAudio
)

// envelope is the single self-describing shape every frame payload takes.
type envelope struct {
	Kind     Kind            `json:"kind"`
	Control  *ControlMessage `json:"control,omitempty"`
	Response *ServerResponse `json:"response,omitempty"`
	Audio    *AudioFrame     `json:"audio,omitempty"`
}

// EncodeControl produces the canonical bytes for a ControlMessage frame.
func EncodeControl(msg ControlMessage) ([]byte, error) {
	return json.Marshal(envelope{Kind: KindControl, Control: &msg})
}

// EncodeResponse produces the canonical bytes for a ServerResponse frame.
func EncodeResponse(resp ServerResponse) ([]byte, error) {
	return json.Marshal(envelope{Kind: KindResponse, Response: &resp})
}

// EncodeAudio produces the canonical bytes for an AudioFrame frame.
func EncodeAudio(frame AudioFrame) ([]byte, error) {
	return json.Marshal(envelope{Kind: KindAudio, Audio: &frame})
}

// Decode parses a frame payload into whichever of ControlMessage,
// ServerResponse, or AudioFrame the kind tag names. The returned value is
// one of those three concrete types.
func Decode(payload []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	switch env.Kind {
	case KindControl:
		if env.Control == nil {
			return nil, fmt.Errorf("%w: control envelope missing payload", ErrDecode)
		}
		return *env.Control, nil
	case KindResponse:
		if env.Response == nil {
			return nil, fmt.Errorf("%w: response envelope missing payload", ErrDecode)
		}
		return *env.Response, nil
	case KindAudio:
		if env.Audio == nil {
			return nil, fmt.Errorf("%w: audio envelope missing payload", ErrDecode)
		}
		return *env.Audio, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrDecode, env.Kind)
	}
}
