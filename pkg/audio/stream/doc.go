// ABOUTME: Streaming buffer package between capture and playback
// ABOUTME: Provides a lock-free bounded byte queue with overflow discard
// Package stream provides the queue that carries processed audio from the
// capture callback to the render callback.
//
// Both callbacks run in real-time contexts, so neither side may block:
//   - Push never waits; bytes that do not fit are dropped (newest first)
//   - Pull never waits; missing bytes are returned as silence
//
// Example:
//
//	buf, _ := stream.New(stream.DefaultCapacity)
//
//	// capture side
//	buf.Push(block)
//
//	// render side
//	buf.Pull(out)
package stream
