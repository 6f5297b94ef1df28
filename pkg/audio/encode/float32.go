// ABOUTME: Float32 PCM encoder
// ABOUTME: Encodes float32 samples to little-endian IEEE-754 bytes
package encode

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Resonate-Protocol/echo-loopback/pkg/audio"
)

// Float32Encoder encodes 32-bit float PCM
type Float32Encoder struct{}

// NewFloat32 creates a new float32 encoder
func NewFloat32(format audio.Format) (Encoder, error) {
	if format.Codec != "" && format.Codec != audio.CodecFloat32 {
		return nil, fmt.Errorf("%w: invalid codec for float32 encoder: %s", audio.ErrInvalidFormat, format.Codec)
	}

	if format.BitDepth != audio.Float32BitDepth {
		return nil, fmt.Errorf("%w: unsupported bit depth: %d (supported: 32)", audio.ErrInvalidFormat, format.BitDepth)
	}

	return &Float32Encoder{}, nil
}

// Encode converts samples to float32 bytes
func (e *Float32Encoder) Encode(samples []float32) ([]byte, error) {
	return Float32(samples), nil
}

// EncodeInto converts samples into dst
func (e *Float32Encoder) EncodeInto(dst []byte, samples []float32) (int, error) {
	return Float32Into(dst, samples)
}

// Close releases resources
func (e *Float32Encoder) Close() error {
	return nil
}

// Float32 is the exact inverse of decode.Float32. Bit patterns are kept,
// including NaN payloads and negative zero.
func Float32(samples []float32) []byte {
	output := make([]byte, len(samples)*4)
	for i, sample := range samples {
		binary.LittleEndian.PutUint32(output[i*4:], math.Float32bits(sample))
	}
	return output
}

// Float32Into encodes samples into dst and returns the number of bytes written.
func Float32Into(dst []byte, samples []float32) (int, error) {
	n := len(samples) * 4
	if len(dst) < n {
		return 0, fmt.Errorf("%w: need %d, have %d", ErrShortBuffer, n, len(dst))
	}

	for i, sample := range samples {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(sample))
	}
	return n, nil
}
