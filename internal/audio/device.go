// Package audio implements the client-side audio pipeline: capture →
// gain → encode → network on the way out, decode → bounded buffer →
// playback on the way in, behind device and codec interfaces so the
// hardware-backed and null implementations are interchangeable.
package audio

import "errors"

// Fixed pipeline parameters. The codec frame is 20 ms at 48 kHz mono.
const (
	SampleRate = 48000
	Channels   = 1
	FrameSize  = 960
)

// ErrDevice marks an audio device initialize/start failure. Callers
// degrade to the null device rather than failing the session.
var ErrDevice = errors.New("audio: device error")

// Capture is an input device. Initialize must be called before Start;
// after Start the device invokes the callback registered with
// SetOnSamples once per captured block. The callback runs on the
// device's own thread and must not block.
type Capture interface {
	Initialize(sampleRate, channels int) error
	Start() error
	Stop() error
	SetGain(gain float64)
	Gain() float64
	SetOnSamples(func(block []float32))
}

// Playback is an output device. PushSamples hands it one decoded block;
// the device owns a bounded buffer and drops the oldest samples on
// overflow. Output gain is applied inside the device at emit time.
type Playback interface {
	Initialize(sampleRate, channels int) error
	Start() error
	Stop() error
	SetGain(gain float64)
	Gain() float64
	PushSamples(block []float32)
}

// clampGain keeps gain in the linear [0.0, 1.0] range shared by every
// device implementation.
func clampGain(g float64) float64 {
	if g < 0 {
		return 0
	}
	if g > 1 {
		return 1
	}
	return g
}

func clampSample(v float32) float32 {
	if v > 1.0 {
		return 1.0
	}
	if v < -1.0 {
		return -1.0
	}
	return v
}
