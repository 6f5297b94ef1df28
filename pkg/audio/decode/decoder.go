// ABOUTME: Decoder interface definition
// ABOUTME: Common interface for sample decoders
package decode

import "errors"

var (
	// ErrInvalidInput is returned when a byte block is not a whole number of samples
	ErrInvalidInput = errors.New("byte count must be a multiple of 4")

	// ErrShortBuffer is returned when the destination cannot hold the decoded samples
	ErrShortBuffer = errors.New("destination too short for decoded samples")
)

// Decoder decodes raw device bytes to normalized float32 samples
type Decoder interface {
	// Decode converts a byte block to samples
	Decode(data []byte) ([]float32, error)

	// DecodeInto converts a byte block into dst without allocating
	DecodeInto(dst []float32, data []byte) (int, error)

	// Close releases decoder resources
	Close() error
}
