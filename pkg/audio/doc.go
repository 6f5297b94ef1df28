// ABOUTME: Audio fundamentals package providing the session format type
// ABOUTME: Describes sample rate, channel count and float32 byte layout
// Package audio provides fundamental audio types for the echo loopback.
//
// A session runs at a single Format negotiated from the capture device:
//   - SampleRate and Channels come from the device's native mix format
//   - samples are always interleaved 32-bit float, little-endian
//
// Example:
//
//	format := audio.NewFloat32Format(48000, 2)
//	if err := format.Validate(); err != nil {
//	    return err
//	}
//	frameBytes := format.BlockAlign() // 8
package audio
