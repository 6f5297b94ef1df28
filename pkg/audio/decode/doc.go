// ABOUTME: Sample decoder package for raw device blocks
// ABOUTME: Provides Decoder interface and the float32 implementation
// Package decode converts raw capture-device bytes to float32 samples.
//
// Capture devices deliver interleaved 32-bit float PCM as a byte block.
// A block must hold a whole number of samples; anything else is rejected
// with ErrInvalidInput rather than silently truncated.
//
// Example:
//
//	samples, err := decode.Float32(block)
//
//	// or, allocation-free on a hot path:
//	n, err := decode.Float32Into(scratch, block)
package decode
