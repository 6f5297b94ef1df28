// ABOUTME: Audio device package for capture and playback endpoints
// ABOUTME: Provides Capturer/Renderer interfaces and malgo, oto, PortAudio, synthetic backends
// Package device owns the platform audio endpoints used by the loopback.
//
// Capture runs in push mode: the backend calls CaptureCallbacks.Data with
// each block of interleaved float32 bytes as soon as it is ready. Render
// runs in pull mode: the backend reads exactly as many bytes as the output
// device needs from an io.Reader.
//
// Backends:
//   - malgo (default): miniaudio capture and playback on the default devices
//   - oto: malgo capture with oto playback
//   - portaudio: PortAudio streams (build with -tags portaudio)
//   - synthetic: ticker-driven tone capture and discarding render, no hardware
//
// Example:
//
//	capture, render, err := device.New(device.BackendMalgo)
//	format, err := capture.Open()
//	err = render.Open(format, buf)
//	err = render.Start(onFault)
//	err = capture.Start(device.CaptureCallbacks{Data: onBlock, Fault: onFault})
//
// Every failure of the platform audio subsystem is a *DeviceError, which
// matches ErrDevice under errors.Is.
package device
