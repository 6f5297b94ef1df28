//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package device

import (
	"errors"
	"io"

	"github.com/Resonate-Protocol/echo-loopback/pkg/audio"
)

var errPortAudioDisabled = errors.New("PortAudio support not enabled (build with -tags portaudio)")

// PortAudioCapture capture device (stub)
type PortAudioCapture struct{}

// NewPortAudioCapture creates a PortAudio capture device
func NewPortAudioCapture() Capturer {
	return &PortAudioCapture{}
}

// Open reports that PortAudio is not compiled in
func (p *PortAudioCapture) Open() (audio.Format, error) {
	return audio.Format{}, deviceErr(BackendPortAudio, "open capture", errPortAudioDisabled)
}

// Start reports that PortAudio is not compiled in
func (p *PortAudioCapture) Start(cb CaptureCallbacks) error {
	return deviceErr(BackendPortAudio, "start capture", errPortAudioDisabled)
}

// Close is a no-op
func (p *PortAudioCapture) Close() error {
	return nil
}

// PortAudioRender render device (stub)
type PortAudioRender struct{}

// NewPortAudioRender creates a PortAudio render device
func NewPortAudioRender() Renderer {
	return &PortAudioRender{}
}

// Open reports that PortAudio is not compiled in
func (p *PortAudioRender) Open(format audio.Format, src io.Reader) error {
	return deviceErr(BackendPortAudio, "open render", errPortAudioDisabled)
}

// Start reports that PortAudio is not compiled in
func (p *PortAudioRender) Start(onFault func(error)) error {
	return deviceErr(BackendPortAudio, "start render", errPortAudioDisabled)
}

// Close is a no-op
func (p *PortAudioRender) Close() error {
	return nil
}
