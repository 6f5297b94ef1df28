// ABOUTME: Synthetic capture and render devices driven by tickers
// ABOUTME: Lets the loopback run headless and be tested without hardware
package device

import (
	"io"
	"sync"
	"time"

	"github.com/Resonate-Protocol/echo-loopback/pkg/audio"
	"github.com/Resonate-Protocol/echo-loopback/pkg/audio/encode"
)

// DefaultBlockDuration is the callback period of the synthetic devices
const DefaultBlockDuration = 10 * time.Millisecond

// ToneCapture emits a sine tone as f32le blocks at a fixed period
type ToneCapture struct {
	Format    audio.Format
	Block     time.Duration
	Frequency float64

	tone    *Tone
	encoder encode.Encoder
	samples []float32
	block   []byte
	cb      CaptureCallbacks
	opened  bool
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
}

// NewToneCapture creates a synthetic capture device for format
func NewToneCapture(format audio.Format) *ToneCapture {
	return &ToneCapture{
		Format:    format,
		Block:     DefaultBlockDuration,
		Frequency: DefaultToneFrequency,
	}
}

// Open returns the configured format
func (c *ToneCapture) Open() (audio.Format, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.Format.Validate(); err != nil {
		return audio.Format{}, deviceErr(BackendSynthetic, "open capture", err)
	}

	encoder, err := encode.NewFloat32(c.Format)
	if err != nil {
		return audio.Format{}, deviceErr(BackendSynthetic, "open capture", err)
	}

	frames := int(c.Block.Seconds() * float64(c.Format.SampleRate))
	if frames < 1 {
		frames = 1
	}
	c.encoder = encoder
	c.tone = NewTone(c.Format.SampleRate, c.Format.Channels, c.Frequency, DefaultToneAmplitude)
	c.samples = make([]float32, frames*c.Format.Channels)
	c.block = make([]byte, len(c.samples)*4)
	c.opened = true

	return c.Format, nil
}

// Start begins emitting blocks
func (c *ToneCapture) Start(cb CaptureCallbacks) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.opened {
		return deviceErr(BackendSynthetic, "start capture", ErrNotOpen)
	}
	if c.done != nil {
		return nil
	}

	c.cb = cb
	c.done = make(chan struct{})
	c.wg.Add(1)
	go c.run(c.done)
	return nil
}

func (c *ToneCapture) run(done chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.Block)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			n := c.tone.Read(c.samples)
			if _, err := c.encoder.EncodeInto(c.block, c.samples[:n]); err != nil {
				continue
			}
			if c.cb.Data != nil {
				c.cb.Data(c.block[:n*4])
			}
		}
	}
}

// SimulateFault reports err through the Fault callback as a device loss
func (c *ToneCapture) SimulateFault(err error) {
	c.mu.Lock()
	fault := c.cb.Fault
	c.mu.Unlock()

	if fault != nil {
		go fault(deviceErr(BackendSynthetic, "capture", err))
	}
}

// Close stops emitting blocks
func (c *ToneCapture) Close() error {
	c.mu.Lock()
	done := c.done
	c.done = nil
	c.opened = false
	c.mu.Unlock()

	if done != nil {
		close(done)
		c.wg.Wait()
	}
	return nil
}

// DiscardRender pulls from its source at a fixed period, as an output
// device would, and optionally keeps the first Limit bytes it pulled
type DiscardRender struct {
	Block time.Duration
	Limit int

	src      io.Reader
	block    []byte
	rendered []byte
	pulls    int
	opened   bool
	done     chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
}

// NewDiscardRender creates a synthetic render device that keeps nothing
func NewDiscardRender() *DiscardRender {
	return &DiscardRender{Block: DefaultBlockDuration}
}

// NewRecordRender creates a synthetic render device that keeps up to limit bytes
func NewRecordRender(limit int) *DiscardRender {
	return &DiscardRender{Block: DefaultBlockDuration, Limit: limit}
}

// Open prepares the pull buffer for format
func (r *DiscardRender) Open(format audio.Format, src io.Reader) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := format.Validate(); err != nil {
		return deviceErr(BackendSynthetic, "open render", err)
	}

	frames := int(r.Block.Seconds() * float64(format.SampleRate))
	if frames < 1 {
		frames = 1
	}
	r.src = src
	r.block = make([]byte, frames*format.BlockAlign())
	r.opened = true
	return nil
}

// Start begins pulling
func (r *DiscardRender) Start(onFault func(error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.opened {
		return deviceErr(BackendSynthetic, "start render", ErrNotOpen)
	}
	if r.done != nil {
		return nil
	}

	r.done = make(chan struct{})
	r.wg.Add(1)
	go r.run(r.done)
	return nil
}

func (r *DiscardRender) run(done chan struct{}) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.Block)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			fillFrom(r.src, r.block)

			r.mu.Lock()
			r.pulls++
			if room := r.Limit - len(r.rendered); room > 0 {
				r.rendered = append(r.rendered, r.block[:min(room, len(r.block))]...)
			}
			r.mu.Unlock()
		}
	}
}

// Rendered returns a copy of the recorded output
func (r *DiscardRender) Rendered() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]byte, len(r.rendered))
	copy(out, r.rendered)
	return out
}

// Pulls returns how many blocks have been pulled from the source
func (r *DiscardRender) Pulls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pulls
}

// Close stops pulling
func (r *DiscardRender) Close() error {
	r.mu.Lock()
	done := r.done
	r.done = nil
	r.opened = false
	r.mu.Unlock()

	if done != nil {
		close(done)
		r.wg.Wait()
	}
	return nil
}
