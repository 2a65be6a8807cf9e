package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
)

// Subsystem owns the PortAudio library lifecycle. Exactly one Subsystem
// is created per process, held by the client, and terminated on close —
// never a package-level global.
type Subsystem struct {
	once sync.Once
	log  zerolog.Logger
}

// NewSubsystem initializes PortAudio. On failure the caller falls back
// to the null devices.
func NewSubsystem(log zerolog.Logger) (*Subsystem, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: initialize: %v", ErrDevice, err)
	}
	return &Subsystem{log: log}, nil
}

// Close terminates the PortAudio library. Safe to call multiple times.
func (s *Subsystem) Close() {
	s.once.Do(func() {
		if err := portaudio.Terminate(); err != nil {
			s.log.Warn().Err(err).Msg("portaudio terminate")
		}
	})
}

// OpenCapture opens the default input device.
func (s *Subsystem) OpenCapture() (*PortAudioCapture, error) {
	return &PortAudioCapture{gain: 1.0, log: s.log}, nil
}

// OpenPlayback opens the default output device.
func (s *Subsystem) OpenPlayback() (*PortAudioPlayback, error) {
	return &PortAudioPlayback{gain: 1.0, log: s.log}, nil
}

// PortAudioCapture reads blocks from the default input device on its own
// goroutine and hands each one to the registered callback.
type PortAudioCapture struct {
	mu      sync.Mutex
	gain    float64
	onBlock func([]float32)
	log     zerolog.Logger

	stream  *portaudio.Stream
	buf     []float32
	running bool
	wg      sync.WaitGroup
}

func (c *PortAudioCapture) Initialize(sampleRate, channels int) error {
	dev, err := portaudio.DefaultInputDevice()
	if err != nil {
		return fmt.Errorf("%w: default input: %v", ErrDevice, err)
	}
	c.buf = make([]float32, FrameSize)
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(sampleRate),
		FramesPerBuffer: FrameSize,
	}
	stream, err := portaudio.OpenStream(params, c.buf)
	if err != nil {
		return fmt.Errorf("%w: open capture stream: %v", ErrDevice, err)
	}
	c.stream = stream
	return nil
}

func (c *PortAudioCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}
	if c.stream == nil {
		return fmt.Errorf("%w: capture not initialized", ErrDevice)
	}
	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("%w: start capture: %v", ErrDevice, err)
	}
	c.running = true
	c.wg.Add(1)
	go c.readLoop()
	return nil
}

func (c *PortAudioCapture) readLoop() {
	defer c.wg.Done()
	for {
		c.mu.Lock()
		running, stream, cb := c.running, c.stream, c.onBlock
		c.mu.Unlock()
		if !running {
			return
		}
		if err := stream.Read(); err != nil {
			if running {
				c.log.Warn().Err(err).Msg("capture read")
			}
			return
		}
		if cb != nil {
			cb(c.buf)
		}
	}
}

// Stop halts the stream first so a blocked Read returns, waits for the
// read loop to exit, then frees the native stream. Closing before the
// loop exits would free the object while the loop may still touch it.
func (c *PortAudioCapture) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	stream := c.stream
	c.mu.Unlock()

	_ = stream.Stop()
	c.wg.Wait()
	_ = stream.Close()

	c.mu.Lock()
	c.stream = nil
	c.mu.Unlock()
	return nil
}

func (c *PortAudioCapture) SetGain(gain float64) {
	c.mu.Lock()
	c.gain = clampGain(gain)
	c.mu.Unlock()
}

func (c *PortAudioCapture) Gain() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gain
}

func (c *PortAudioCapture) SetOnSamples(cb func([]float32)) {
	c.mu.Lock()
	c.onBlock = cb
	c.mu.Unlock()
}

// playbackBufferFrames bounds the playback buffer to one second of
// audio; on overflow the oldest block is dropped.
const playbackBufferFrames = SampleRate / FrameSize

// PortAudioPlayback writes pushed blocks to the default output device,
// emitting silence whenever the buffer runs dry.
type PortAudioPlayback struct {
	mu   sync.Mutex
	gain float64
	log  zerolog.Logger

	stream  *portaudio.Stream
	buf     []float32
	pending chan []float32
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func (p *PortAudioPlayback) Initialize(sampleRate, channels int) error {
	dev, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return fmt.Errorf("%w: default output: %v", ErrDevice, err)
	}
	p.buf = make([]float32, FrameSize)
	p.pending = make(chan []float32, playbackBufferFrames)
	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: channels,
			Latency:  dev.DefaultLowOutputLatency,
		},
		SampleRate:      float64(sampleRate),
		FramesPerBuffer: FrameSize,
	}
	stream, err := portaudio.OpenStream(params, p.buf)
	if err != nil {
		return fmt.Errorf("%w: open playback stream: %v", ErrDevice, err)
	}
	p.stream = stream
	return nil
}

func (p *PortAudioPlayback) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}
	if p.stream == nil {
		return fmt.Errorf("%w: playback not initialized", ErrDevice)
	}
	if err := p.stream.Start(); err != nil {
		return fmt.Errorf("%w: start playback: %v", ErrDevice, err)
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.wg.Add(1)
	go p.writeLoop(p.stopCh)
	return nil
}

func (p *PortAudioPlayback) writeLoop(stop chan struct{}) {
	defer p.wg.Done()
	for {
		select {
		case <-stop:
			return
		default:
		}

		p.mu.Lock()
		gain := float32(p.gain)
		p.mu.Unlock()

		select {
		case block := <-p.pending:
			for i := range p.buf {
				if i < len(block) {
					p.buf[i] = clampSample(block[i] * gain)
				} else {
					p.buf[i] = 0
				}
			}
		default:
			for i := range p.buf {
				p.buf[i] = 0
			}
		}

		if err := p.stream.Write(); err != nil {
			p.mu.Lock()
			running := p.running
			p.mu.Unlock()
			if running {
				p.log.Warn().Err(err).Msg("playback write")
			}
			return
		}
	}
}

// PushSamples enqueues one decoded block, dropping the oldest queued
// block when the one-second buffer is full.
func (p *PortAudioPlayback) PushSamples(block []float32) {
	out := make([]float32, len(block))
	copy(out, block)
	select {
	case p.pending <- out:
		return
	default:
	}
	select {
	case <-p.pending:
	default:
	}
	select {
	case p.pending <- out:
	default:
	}
}

func (p *PortAudioPlayback) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	stream := p.stream
	close(p.stopCh)
	p.mu.Unlock()

	_ = stream.Stop()
	p.wg.Wait()
	_ = stream.Close()

	p.mu.Lock()
	p.stream = nil
	p.mu.Unlock()
	return nil
}

func (p *PortAudioPlayback) SetGain(gain float64) {
	p.mu.Lock()
	p.gain = clampGain(gain)
	p.mu.Unlock()
}

func (p *PortAudioPlayback) Gain() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gain
}
