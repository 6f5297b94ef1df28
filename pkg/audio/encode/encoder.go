// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for sample encoders
package encode

import "errors"

// ErrShortBuffer is returned when the destination cannot hold the encoded bytes
var ErrShortBuffer = errors.New("destination too short for encoded bytes")

// Encoder encodes float32 samples to raw device bytes
type Encoder interface {
	// Encode converts samples to a new byte block
	Encode(samples []float32) ([]byte, error)

	// EncodeInto converts samples into dst without allocating
	EncodeInto(dst []byte, samples []float32) (int, error)

	// Close releases encoder resources
	Close() error
}
