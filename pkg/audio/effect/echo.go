// ABOUTME: Feed-forward echo effect over a quarter-second circular buffer
// ABOUTME: Mixes each live sample with the decayed sample from one period ago
package effect

import (
	"errors"
	"fmt"
	"math"

	"github.com/Resonate-Protocol/echo-loopback/pkg/audio"
)

const (
	// DefaultDecay is the gain applied to the delayed tap
	DefaultDecay float32 = 0.1

	// EchoPeriodDivisor sizes the echo buffer to sampleRate/4 frames (0.25s)
	EchoPeriodDivisor = 4
)

// ErrDegenerateConfig is returned when the echo buffer cannot be sized
var ErrDegenerateConfig = errors.New("degenerate echo configuration")

// Echo is a single-tap feed-forward delay. The buffer stores dry input, so
// the output never feeds back into itself.
//
// Interleaved channels are processed as one flat sample stream and no
// per-channel state is kept. The tap for a sample is the sample exactly
// Len() positions earlier in that stream; it lands on the same channel only
// because Len() is a whole number of frames.
//
// Echo is not safe for concurrent use; it belongs to the capture context.
type Echo struct {
	buffer []float32
	cursor int
	decay  float32
}

// NewEcho creates an echo whose buffer holds sampleRate/4*channels samples.
func NewEcho(sampleRate, channels int, decay float32) (*Echo, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be > 0, got %d", ErrDegenerateConfig, sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("%w: channels must be > 0, got %d", ErrDegenerateConfig, channels)
	}
	if math.IsNaN(float64(decay)) || decay <= 0 || decay >= 1 {
		return nil, fmt.Errorf("%w: decay must be in (0, 1), got %v", ErrDegenerateConfig, decay)
	}

	length := sampleRate / EchoPeriodDivisor * channels
	if length < 1 {
		return nil, fmt.Errorf("%w: %dHz x %dch gives an empty echo buffer", ErrDegenerateConfig, sampleRate, channels)
	}

	return &Echo{
		buffer: make([]float32, length),
		decay:  decay,
	}, nil
}

// NewEchoForFormat creates an echo sized for format.
func NewEchoForFormat(format audio.Format, decay float32) (*Echo, error) {
	return NewEcho(format.SampleRate, format.Channels, decay)
}

// Process applies the echo to samples in place, strictly in order.
func (e *Echo) Process(samples []float32) {
	n := len(e.buffer)
	for i, s := range samples {
		delayed := e.buffer[e.cursor]
		e.buffer[e.cursor] = s
		e.cursor++
		if e.cursor == n {
			e.cursor = 0
		}
		samples[i] = s + delayed*e.decay
	}
}

// Reset clears the echo history and rewinds the cursor
func (e *Echo) Reset() {
	for i := range e.buffer {
		e.buffer[i] = 0
	}
	e.cursor = 0
}

// Len returns the echo buffer length in samples
func (e *Echo) Len() int { return len(e.buffer) }

// Cursor returns the next slot to be read and overwritten
func (e *Echo) Cursor() int { return e.cursor }

// Decay returns the gain applied to the delayed tap
func (e *Echo) Decay() float32 { return e.decay }

// Snapshot returns a copy of the echo buffer in slot order
func (e *Echo) Snapshot() []float32 {
	out := make([]float32, len(e.buffer))
	copy(out, e.buffer)
	return out
}
