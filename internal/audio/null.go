package audio

import (
	"sync"
	"time"
)

// NullCapture satisfies Capture by producing silent blocks at the real
// frame cadence, so the rest of the pipeline exercises its full path
// when no hardware input is available.
type NullCapture struct {
	mu       sync.Mutex
	gain     float64
	onBlock  func([]float32)
	stopCh   chan struct{}
	running  bool
	interval time.Duration
}

// NewNullCapture returns a silent capture device ticking at the 20 ms
// frame interval.
func NewNullCapture() *NullCapture {
	return &NullCapture{
		gain:     1.0,
		interval: time.Second * FrameSize / SampleRate,
	}
}

func (n *NullCapture) Initialize(sampleRate, channels int) error { return nil }

func (n *NullCapture) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.running {
		return nil
	}
	n.running = true
	n.stopCh = make(chan struct{})
	go n.run(n.stopCh)
	return nil
}

func (n *NullCapture) run(stop chan struct{}) {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()
	silence := make([]float32, FrameSize)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			n.mu.Lock()
			cb := n.onBlock
			n.mu.Unlock()
			if cb != nil {
				cb(silence)
			}
		}
	}
}

func (n *NullCapture) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.running {
		return nil
	}
	n.running = false
	close(n.stopCh)
	return nil
}

func (n *NullCapture) SetGain(gain float64) {
	n.mu.Lock()
	n.gain = clampGain(gain)
	n.mu.Unlock()
}

func (n *NullCapture) Gain() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.gain
}

func (n *NullCapture) SetOnSamples(cb func([]float32)) {
	n.mu.Lock()
	n.onBlock = cb
	n.mu.Unlock()
}

// NullPlayback satisfies Playback by discarding everything pushed at it.
type NullPlayback struct {
	mu   sync.Mutex
	gain float64
}

func NewNullPlayback() *NullPlayback { return &NullPlayback{gain: 1.0} }

func (n *NullPlayback) Initialize(sampleRate, channels int) error { return nil }
func (n *NullPlayback) Start() error                              { return nil }
func (n *NullPlayback) Stop() error                               { return nil }

func (n *NullPlayback) SetGain(gain float64) {
	n.mu.Lock()
	n.gain = clampGain(gain)
	n.mu.Unlock()
}

func (n *NullPlayback) Gain() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.gain
}

func (n *NullPlayback) PushSamples(block []float32) {}
