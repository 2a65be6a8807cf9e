package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestControlMessageRoundTrip(t *testing.T) {
	msg := ControlMessage{Type: ControlJoin, UserID: "alice", RoomID: "r1", RequestID: 11}
	payload, err := EncodeControl(msg)
	require.NoError(t, err)

	decoded, err := Decode(payload)
	require.NoError(t, err)
	require.Equal(t, msg, decoded)
}

func TestServerResponseRoundTrip(t *testing.T) {
	resp := ServerResponse{Status: StatusSuccess, Message: "welcome", RequestID: 0}
	payload, err := EncodeResponse(resp)
	require.NoError(t, err)

	decoded, err := Decode(payload)
	require.NoError(t, err)
	require.Equal(t, resp, decoded)
}

func TestAudioFrameRoundTrip(t *testing.T) {
	frame := AudioFrame{UserID: "bob", AudioPayload: []byte{0xDE, 0xAD, 0xBE, 0xEF}, Timestamp: 42, SequenceNumber: 0}
	payload, err := EncodeAudio(frame)
	require.NoError(t, err)

	decoded, err := Decode(payload)
	require.NoError(t, err)
	require.Equal(t, frame, decoded)
}

func TestAudioFrameEmptyPayloadRoundTrip(t *testing.T) {
	frame := AudioFrame{UserID: "bob"}
	payload, err := EncodeAudio(frame)
	require.NoError(t, err)

	decoded, err := Decode(payload)
	require.NoError(t, err)
	got, ok := decoded.(AudioFrame)
	require.True(t, ok)
	require.Equal(t, "bob", got.UserID)
}

func TestDecodeGarbageIsDecodeError(t *testing.T) {
	_, err := Decode([]byte("not json"))
	require.ErrorIs(t, err, ErrDecode)
}

func TestDecodeUnknownKindIsDecodeError(t *testing.T) {
	_, err := Decode([]byte(`{"kind": 99}`))
	require.ErrorIs(t, err, ErrDecode)
}
