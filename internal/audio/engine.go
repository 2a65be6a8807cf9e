package audio

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Sender hands one encoded packet to the network layer. It must never
// block: the capture callback that calls it runs on the device's
// real-time thread.
type Sender func(encoded []byte) error

// Engine couples the capture callback, the codec, and the send path on
// the way out, and the decode and playback buffer on the way in.
type Engine struct {
	capture  Capture
	playback Playback
	codec    Codec
	send     Sender
	log      zerolog.Logger

	encoder Encoder
	pcm     []int16
	packet  []byte

	mu       sync.Mutex
	decoders map[string]*senderDecoder

	muted   atomic.Bool
	started atomic.Bool

	// captureDropped counts frames discarded because the send path
	// reported backpressure.
	captureDropped atomic.Uint64
}

type senderDecoder struct {
	dec Decoder
	pcm []int16
	out []float32
}

// NewEngine wires the devices, codec, and sender together. Start must be
// called before any audio flows.
func NewEngine(capture Capture, playback Playback, codec Codec, send Sender, log zerolog.Logger) *Engine {
	return &Engine{
		capture:  capture,
		playback: playback,
		codec:    codec,
		send:     send,
		log:      log,
		decoders: make(map[string]*senderDecoder),
	}
}

// Start initializes both devices at the fixed pipeline parameters,
// creates the encoder, registers the capture callback, and starts the
// streams. Encode buffers are allocated here, once, so the callback
// itself never allocates.
func (e *Engine) Start() error {
	if !e.started.CompareAndSwap(false, true) {
		return nil
	}
	enc, err := e.codec.NewEncoder()
	if err != nil {
		e.started.Store(false)
		return err
	}
	e.encoder = enc
	e.pcm = make([]int16, FrameSize)
	e.packet = make([]byte, MaxPacketBytes)

	if err := e.capture.Initialize(SampleRate, Channels); err != nil {
		e.started.Store(false)
		return err
	}
	if err := e.playback.Initialize(SampleRate, Channels); err != nil {
		e.started.Store(false)
		return err
	}
	e.capture.SetOnSamples(e.onCaptured)
	if err := e.capture.Start(); err != nil {
		e.started.Store(false)
		return err
	}
	if err := e.playback.Start(); err != nil {
		_ = e.capture.Stop()
		e.started.Store(false)
		return err
	}
	e.log.Info().Msg("audio engine started")
	return nil
}

// Stop halts both devices. Inbound frames delivered after Stop are
// dropped by the playback device itself.
func (e *Engine) Stop() {
	if !e.started.CompareAndSwap(true, false) {
		return
	}
	_ = e.capture.Stop()
	_ = e.playback.Stop()
	e.log.Info().Msg("audio engine stopped")
}

// SetMuted discards captured blocks without encoding or sending them.
func (e *Engine) SetMuted(muted bool) { e.muted.Store(muted) }

// Muted reports the capture mute state.
func (e *Engine) Muted() bool { return e.muted.Load() }

// SetInputGain adjusts the linear gain applied to captured samples.
func (e *Engine) SetInputGain(gain float64) { e.capture.SetGain(gain) }

// SetOutputGain adjusts the linear gain the playback device applies.
func (e *Engine) SetOutputGain(gain float64) { e.playback.SetGain(gain) }

// CaptureDropped returns and resets the backpressure drop counter.
func (e *Engine) CaptureDropped() uint64 { return e.captureDropped.Swap(0) }

// onCaptured is the capture device callback: gain, encode, send. It
// reuses the buffers sized at Start and never blocks.
func (e *Engine) onCaptured(block []float32) {
	if e.muted.Load() || !e.started.Load() {
		return
	}
	gain := float32(e.capture.Gain())
	n := len(block)
	if n > FrameSize {
		n = FrameSize
	}
	for i := 0; i < n; i++ {
		e.pcm[i] = int16(clampSample(block[i]*gain) * 32767)
	}
	for i := n; i < FrameSize; i++ {
		e.pcm[i] = 0
	}

	sz, err := e.encoder.Encode(e.pcm, e.packet)
	if err != nil {
		e.log.Warn().Err(err).Msg("encode")
		return
	}
	encoded := make([]byte, sz)
	copy(encoded, e.packet[:sz])

	if err := e.send(encoded); err != nil {
		e.captureDropped.Add(1)
	}
}

// HandleIncoming decodes one received packet and pushes the PCM to the
// playback device. Decoders are stateful, so each remote sender gets its
// own, created on first packet. Decode failures drop the frame and never
// tear anything down.
func (e *Engine) HandleIncoming(senderID string, encoded []byte) {
	if !e.started.Load() {
		return
	}
	e.mu.Lock()
	sd, ok := e.decoders[senderID]
	if !ok {
		dec, err := e.codec.NewDecoder()
		if err != nil {
			e.mu.Unlock()
			e.log.Warn().Err(err).Str("sender", senderID).Msg("create decoder")
			return
		}
		sd = &senderDecoder{
			dec: dec,
			pcm: make([]int16, FrameSize),
			out: make([]float32, FrameSize),
		}
		e.decoders[senderID] = sd
	}
	e.mu.Unlock()

	n, err := sd.dec.Decode(encoded, sd.pcm)
	if err != nil {
		e.log.Warn().Err(err).Str("sender", senderID).Msg("decode")
		return
	}
	for i := 0; i < n; i++ {
		sd.out[i] = float32(sd.pcm[i]) / 32768.0
	}
	e.playback.PushSamples(sd.out[:n])
}

// ForgetSender releases the decoder state for a sender that left, so a
// long-lived session doesn't accumulate decoders for departed peers.
func (e *Engine) ForgetSender(senderID string) {
	e.mu.Lock()
	delete(e.decoders, senderID)
	e.mu.Unlock()
}
