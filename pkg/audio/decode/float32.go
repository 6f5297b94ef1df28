// ABOUTME: Float32 PCM decoder
// ABOUTME: Decodes little-endian IEEE-754 bytes to float32 samples
package decode

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Resonate-Protocol/echo-loopback/pkg/audio"
)

// Float32Decoder decodes 32-bit float PCM
type Float32Decoder struct{}

// NewFloat32 creates a new float32 decoder
func NewFloat32(format audio.Format) (Decoder, error) {
	if format.Codec != "" && format.Codec != audio.CodecFloat32 {
		return nil, fmt.Errorf("%w: invalid codec for float32 decoder: %s", audio.ErrInvalidFormat, format.Codec)
	}

	if format.BitDepth != audio.Float32BitDepth {
		return nil, fmt.Errorf("%w: unsupported bit depth: %d (supported: 32)", audio.ErrInvalidFormat, format.BitDepth)
	}

	return &Float32Decoder{}, nil
}

// Decode converts float32 bytes to samples
func (d *Float32Decoder) Decode(data []byte) ([]float32, error) {
	return Float32(data)
}

// DecodeInto converts float32 bytes into dst
func (d *Float32Decoder) DecodeInto(dst []float32, data []byte) (int, error) {
	return Float32Into(dst, data)
}

// Close releases resources
func (d *Float32Decoder) Close() error {
	return nil
}

// Float32 interprets each 4-byte little-endian group of data as a float32.
func Float32(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidInput, len(data))
	}

	samples := make([]float32, len(data)/4)
	if _, err := Float32Into(samples, data); err != nil {
		return nil, err
	}
	return samples, nil
}

// Float32Into decodes data into dst and returns the number of samples written.
// It never allocates, so it is safe to call from the capture callback.
func Float32Into(dst []float32, data []byte) (int, error) {
	if len(data)%4 != 0 {
		return 0, fmt.Errorf("%w: got %d bytes", ErrInvalidInput, len(data))
	}

	n := len(data) / 4
	if len(dst) < n {
		return 0, fmt.Errorf("%w: need %d, have %d", ErrShortBuffer, n, len(dst))
	}

	for i := 0; i < n; i++ {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return n, nil
}
