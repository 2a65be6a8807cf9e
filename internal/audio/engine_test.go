package audio

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeCapture lets a test drive the capture callback directly.
type fakeCapture struct {
	mu      sync.Mutex
	gain    float64
	onBlock func([]float32)
	started bool
}

func newFakeCapture() *fakeCapture { return &fakeCapture{gain: 1.0} }

func (f *fakeCapture) Initialize(sampleRate, channels int) error { return nil }
func (f *fakeCapture) Start() error                              { f.started = true; return nil }
func (f *fakeCapture) Stop() error                               { f.started = false; return nil }
func (f *fakeCapture) SetGain(g float64)                         { f.mu.Lock(); f.gain = clampGain(g); f.mu.Unlock() }
func (f *fakeCapture) Gain() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gain
}
func (f *fakeCapture) SetOnSamples(cb func([]float32)) { f.onBlock = cb }

func (f *fakeCapture) emit(block []float32) {
	if f.onBlock != nil {
		f.onBlock(block)
	}
}

// fakePlayback records every pushed block.
type fakePlayback struct {
	mu     sync.Mutex
	gain   float64
	blocks [][]float32
}

func newFakePlayback() *fakePlayback { return &fakePlayback{gain: 1.0} }

func (f *fakePlayback) Initialize(sampleRate, channels int) error { return nil }
func (f *fakePlayback) Start() error                              { return nil }
func (f *fakePlayback) Stop() error                               { return nil }
func (f *fakePlayback) SetGain(g float64)                         { f.mu.Lock(); f.gain = clampGain(g); f.mu.Unlock() }
func (f *fakePlayback) Gain() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gain
}
func (f *fakePlayback) PushSamples(block []float32) {
	out := make([]float32, len(block))
	copy(out, block)
	f.mu.Lock()
	f.blocks = append(f.blocks, out)
	f.mu.Unlock()
}

func (f *fakePlayback) pushed() [][]float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blocks
}

// identityCodec "encodes" PCM by truncating each sample to its low byte,
// enough for the pipeline tests to verify routing without cgo.
type identityCodec struct{ decoders int }

type identityEncoder struct{}

func (identityEncoder) Encode(pcm []int16, buf []byte) (int, error) {
	for i, s := range pcm {
		buf[i] = byte(s)
	}
	return len(pcm), nil
}

type identityDecoder struct{}

func (identityDecoder) Decode(data []byte, pcm []int16) (int, error) {
	for i, b := range data {
		pcm[i] = int16(b)
	}
	return len(data), nil
}

func (c *identityCodec) NewEncoder() (Encoder, error) { return identityEncoder{}, nil }
func (c *identityCodec) NewDecoder() (Decoder, error) {
	c.decoders++
	return identityDecoder{}, nil
}

func startEngine(t *testing.T, send Sender) (*Engine, *fakeCapture, *fakePlayback, *identityCodec) {
	t.Helper()
	capt := newFakeCapture()
	pb := newFakePlayback()
	codec := &identityCodec{}
	if send == nil {
		send = func([]byte) error { return nil }
	}
	e := NewEngine(capt, pb, codec, send, zerolog.Nop())
	require.NoError(t, e.Start())
	t.Cleanup(e.Stop)
	return e, capt, pb, codec
}

func TestCaptureEncodesAndSends(t *testing.T) {
	var sent [][]byte
	_, capt, _, _ := startEngine(t, func(b []byte) error {
		sent = append(sent, b)
		return nil
	})

	block := make([]float32, FrameSize)
	block[0] = 1.0
	capt.emit(block)

	require.Len(t, sent, 1)
	require.Len(t, sent[0], FrameSize)
	require.Equal(t, byte(32767&0xFF), sent[0][0])
}

func TestMutedCaptureDiscards(t *testing.T) {
	var sent int
	e, capt, _, _ := startEngine(t, func([]byte) error {
		sent++
		return nil
	})

	e.SetMuted(true)
	capt.emit(make([]float32, FrameSize))
	require.Zero(t, sent)

	e.SetMuted(false)
	capt.emit(make([]float32, FrameSize))
	require.Equal(t, 1, sent)
}

func TestInputGainScalesSamples(t *testing.T) {
	var sent [][]byte
	e, capt, _, _ := startEngine(t, func(b []byte) error {
		sent = append(sent, b)
		return nil
	})

	e.SetInputGain(0.0)
	block := make([]float32, FrameSize)
	for i := range block {
		block[i] = 0.5
	}
	capt.emit(block)

	require.Len(t, sent, 1)
	for _, b := range sent[0] {
		require.Zero(t, b)
	}
}

func TestSendBackpressureCountsDrop(t *testing.T) {
	e, capt, _, _ := startEngine(t, func([]byte) error {
		return errors.New("queue full")
	})

	capt.emit(make([]float32, FrameSize))
	capt.emit(make([]float32, FrameSize))
	require.Equal(t, uint64(2), e.CaptureDropped())
	require.Zero(t, e.CaptureDropped())
}

func TestIncomingDecodedToPlayback(t *testing.T) {
	e, _, pb, _ := startEngine(t, nil)

	packet := make([]byte, FrameSize)
	packet[0] = 100
	e.HandleIncoming("bob", packet)

	blocks := pb.pushed()
	require.Len(t, blocks, 1)
	require.Len(t, blocks[0], FrameSize)
	require.InDelta(t, 100.0/32768.0, blocks[0][0], 1e-6)
}

func TestDecoderPerSender(t *testing.T) {
	e, _, _, codec := startEngine(t, nil)

	packet := make([]byte, FrameSize)
	e.HandleIncoming("bob", packet)
	e.HandleIncoming("bob", packet)
	e.HandleIncoming("carol", packet)
	require.Equal(t, 2, codec.decoders)

	e.ForgetSender("bob")
	e.HandleIncoming("bob", packet)
	require.Equal(t, 3, codec.decoders)
}

func TestStoppedEngineDropsBothPaths(t *testing.T) {
	var sent int
	e, capt, pb, _ := startEngine(t, func([]byte) error {
		sent++
		return nil
	})
	e.Stop()

	capt.emit(make([]float32, FrameSize))
	e.HandleIncoming("bob", make([]byte, FrameSize))

	require.Zero(t, sent)
	require.Empty(t, pb.pushed())
}

func TestNullCaptureEmitsSilence(t *testing.T) {
	n := NewNullCapture()
	got := make(chan []float32, 1)
	n.SetOnSamples(func(block []float32) {
		select {
		case got <- block:
		default:
		}
	})
	require.NoError(t, n.Initialize(SampleRate, Channels))
	require.NoError(t, n.Start())
	defer n.Stop()

	block := <-got
	require.Len(t, block, FrameSize)
	for _, s := range block {
		require.Zero(t, s)
	}
}

func TestGainClamped(t *testing.T) {
	pb := NewNullPlayback()
	pb.SetGain(2.5)
	require.Equal(t, 1.0, pb.Gain())
	pb.SetGain(-1)
	require.Equal(t, 0.0, pb.Gain())
}
