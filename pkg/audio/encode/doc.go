// ABOUTME: Sample encoder package for raw device blocks
// ABOUTME: Provides Encoder interface and the float32 implementation
// Package encode converts float32 samples back to the byte layout render
// devices expect: interleaved 32-bit float PCM, little-endian.
//
// Float32 is the exact inverse of decode.Float32, so a block survives a
// decode/encode round trip byte for byte.
//
// Example:
//
//	block := encode.Float32(samples)
//
//	// or, allocation-free on a hot path:
//	n, err := encode.Float32Into(scratch, samples)
package encode
