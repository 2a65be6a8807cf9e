package client

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/rustyguts/vroom/internal/correlator"
	"github.com/rustyguts/vroom/internal/protocol"
	"github.com/rustyguts/vroom/internal/server"
	"github.com/rustyguts/vroom/internal/wire"
)

// startServer runs a real hub on a loopback listener and returns its
// address.
func startServer(t *testing.T) string {
	t.Helper()
	log := zerolog.Nop()
	ln, err := wire.Listen("127.0.0.1:0", 0, log)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	hub := server.NewHub(log)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ln.Addr().String()
}

func dialClient(t *testing.T, addr, userID string) *Client {
	t.Helper()
	c, err := Dial(context.Background(), addr, userID, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestWelcomeDeliveredUnsolicited(t *testing.T) {
	addr := startServer(t)
	c := dialClient(t, addr, "alice")

	select {
	case resp := <-c.Unsolicited():
		require.Equal(t, protocol.StatusSuccess, resp.Status)
		require.Equal(t, uint32(0), resp.RequestID)
		require.NotEmpty(t, resp.Message)
	case <-time.After(time.Second):
		t.Fatal("no welcome within 1s")
	}
}

func TestListRoomsRoundTrip(t *testing.T) {
	addr := startServer(t)
	c := dialClient(t, addr, "alice")

	listing, err := c.ListRooms(context.Background())
	require.NoError(t, err)
	rooms := ParseListing(listing)
	require.Len(t, rooms, 1)
	require.Equal(t, "main", rooms[0].ID)
	require.Equal(t, []string{"alice"}, rooms[0].Members)
}

func TestJoinLeaveRoundTrip(t *testing.T) {
	addr := startServer(t)
	alice := dialClient(t, addr, "alice")
	bob := dialClient(t, addr, "bob")

	_, err := alice.Join(context.Background(), "r1")
	require.NoError(t, err)

	listing, err := bob.ListRooms(context.Background())
	require.NoError(t, err)
	rooms := ParseListing(listing)
	require.Len(t, rooms, 2)
	require.Equal(t, "main", rooms[0].ID)
	require.Equal(t, []string{"bob"}, rooms[0].Members)
	require.Equal(t, "r1", rooms[1].ID)
	require.Equal(t, []string{"alice"}, rooms[1].Members)

	_, err = alice.Leave(context.Background())
	require.NoError(t, err)

	listing, err = bob.ListRooms(context.Background())
	require.NoError(t, err)
	rooms = ParseListing(listing)
	require.Len(t, rooms, 1)
	require.Equal(t, []string{"alice", "bob"}, rooms[0].Members)
}

func TestAudioFanOutBetweenClients(t *testing.T) {
	addr := startServer(t)
	alice := dialClient(t, addr, "alice")
	bob := dialClient(t, addr, "bob")
	carol := dialClient(t, addr, "carol")

	_, err := alice.Join(context.Background(), "r1")
	require.NoError(t, err)
	_, err = bob.Join(context.Background(), "r1")
	require.NoError(t, err)

	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	require.NoError(t, alice.SendAudio(payload))

	select {
	case frame := <-bob.AudioFrames():
		require.Equal(t, "alice", frame.UserID)
		require.Equal(t, payload, frame.AudioPayload)
	case <-time.After(time.Second):
		t.Fatal("bob never received audio")
	}

	select {
	case frame := <-carol.AudioFrames():
		t.Fatalf("carol should not receive audio, got %v", frame)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestMutedClientSendsNothing(t *testing.T) {
	addr := startServer(t)
	alice := dialClient(t, addr, "alice")
	bob := dialClient(t, addr, "bob")

	_, err := alice.Join(context.Background(), "r1")
	require.NoError(t, err)
	_, err = bob.Join(context.Background(), "r1")
	require.NoError(t, err)

	msg, err := alice.Mute(context.Background())
	require.NoError(t, err)
	require.Equal(t, "muted", msg)
	require.True(t, alice.Muted())
	require.NoError(t, alice.SendAudio([]byte{1, 2, 3}))

	select {
	case frame := <-bob.AudioFrames():
		t.Fatalf("muted client leaked audio: %v", frame)
	case <-time.After(150 * time.Millisecond):
	}

	msg, err = alice.Unmute(context.Background())
	require.NoError(t, err)
	require.Equal(t, "unmuted", msg)
	require.False(t, alice.Muted())
}

func TestRequestAfterCloseFailsConnectionLost(t *testing.T) {
	addr := startServer(t)
	alice := dialClient(t, addr, "alice")
	require.NoError(t, alice.Close())

	_, err := alice.ListRooms(context.Background())
	require.ErrorIs(t, err, correlator.ErrConnectionLost)
}

func TestDialFailsAgainstNothing(t *testing.T) {
	_, err := Dial(context.Background(), "127.0.0.1:1", "alice", zerolog.Nop())
	require.Error(t, err)
}

func TestParseListingEdgeCases(t *testing.T) {
	require.Nil(t, ParseListing(""))

	rooms := ParseListing("main:.")
	require.Len(t, rooms, 1)
	require.Equal(t, "main", rooms[0].ID)
	require.Empty(t, rooms[0].Members)

	rooms = ParseListing("main:alice:bob:.;r1:carol:.")
	require.Len(t, rooms, 2)
	require.Equal(t, []string{"alice", "bob"}, rooms[0].Members)
	require.Equal(t, []string{"carol"}, rooms[1].Members)
}
