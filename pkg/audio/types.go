// ABOUTME: Audio type definitions
// ABOUTME: Defines the negotiated session format and its byte layout
package audio

import (
	"errors"
	"fmt"
)

const (
	// CodecFloat32 is the only sample representation the loopback handles:
	// interleaved IEEE-754 float32, little-endian.
	CodecFloat32 = "f32le"

	// Float32BitDepth is the bit depth of a CodecFloat32 sample
	Float32BitDepth = 32
)

// ErrInvalidFormat is returned when a format cannot describe a session
var ErrInvalidFormat = errors.New("invalid audio format")

// Format describes audio stream format
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// NewFloat32Format returns a 32-bit float format for the given rate and channel count
func NewFloat32Format(sampleRate, channels int) Format {
	return Format{
		Codec:      CodecFloat32,
		SampleRate: sampleRate,
		Channels:   channels,
		BitDepth:   Float32BitDepth,
	}
}

// BytesPerSample returns the size of one sample of one channel
func (f Format) BytesPerSample() int {
	return f.BitDepth / 8
}

// BlockAlign returns the size of one interleaved frame in bytes
func (f Format) BlockAlign() int {
	return f.Channels * f.BytesPerSample()
}

// BytesPerSecond returns the byte rate of the stream
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.BlockAlign()
}

// Validate checks that the format can carry a loopback session
func (f Format) Validate() error {
	if f.Codec != "" && f.Codec != CodecFloat32 {
		return fmt.Errorf("%w: unsupported codec %q (supported: %s)", ErrInvalidFormat, f.Codec, CodecFloat32)
	}
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be > 0, got %d", ErrInvalidFormat, f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("%w: channels must be > 0, got %d", ErrInvalidFormat, f.Channels)
	}
	if f.BitDepth != Float32BitDepth {
		return fmt.Errorf("%w: unsupported bit depth: %d (supported: %d)", ErrInvalidFormat, f.BitDepth, Float32BitDepth)
	}
	return nil
}

// String returns a short human-readable description such as "48000Hz 2ch f32le"
func (f Format) String() string {
	codec := f.Codec
	if codec == "" {
		codec = CodecFloat32
	}
	return fmt.Sprintf("%dHz %dch %s", f.SampleRate, f.Channels, codec)
}
