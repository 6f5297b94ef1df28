// ABOUTME: Sine tone generator for synthetic capture
// ABOUTME: Generates interleaved float32 test tones
package device

import (
	"math"
	"sync"
)

const (
	// DefaultToneFrequency is A4
	DefaultToneFrequency = 440.0

	// DefaultToneAmplitude keeps the tone at half scale
	DefaultToneAmplitude = 0.5
)

// Tone generates a sine wave duplicated across channels
type Tone struct {
	sampleRate  int
	channels    int
	frequency   float64
	amplitude   float64
	sampleIndex uint64
	sampleMu    sync.Mutex
}

// NewTone creates a tone generator
func NewTone(sampleRate, channels int, frequency, amplitude float64) *Tone {
	return &Tone{
		sampleRate: sampleRate,
		channels:   channels,
		frequency:  frequency,
		amplitude:  amplitude,
	}
}

// Read fills samples with whole interleaved frames and returns the number of
// samples written
func (t *Tone) Read(samples []float32) int {
	t.sampleMu.Lock()
	defer t.sampleMu.Unlock()

	numFrames := len(samples) / t.channels

	for i := 0; i < numFrames; i++ {
		ts := float64(t.sampleIndex+uint64(i)) / float64(t.sampleRate)
		v := float32(t.amplitude * math.Sin(2*math.Pi*t.frequency*ts))

		for ch := 0; ch < t.channels; ch++ {
			samples[i*t.channels+ch] = v
		}
	}

	t.sampleIndex += uint64(numFrames)

	return numFrames * t.channels
}
