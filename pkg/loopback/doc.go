// ABOUTME: Loopback package wiring capture, echo and playback
// ABOUTME: Provides Session lifecycle and the per-block Pipeline
// Package loopback runs the real-time echo loop.
//
// A Session opens the default capture device, sizes a quarter-second echo
// from its native format, and connects:
//
//	capture ─► decode ─► echo ─► encode ─► queue ─► render
//
// The capture callback runs the whole chain synchronously for each block.
// The render callback only pulls from the queue. Neither blocks the other.
//
// Example:
//
//	capture, render, err := device.New(device.BackendMalgo)
//	session, err := loopback.New(loopback.DefaultConfig(), capture, render)
//	if err := session.Start(ctx); err != nil {
//	    return err
//	}
//	defer session.Stop()
//
// Errors:
//   - ErrConfig (wrapping effect.ErrDegenerateConfig) when the echo cannot be sized
//   - *device.DeviceError for any failure of the audio devices
//   - decode.ErrInvalidInput for a malformed block; the block is skipped
package loopback
