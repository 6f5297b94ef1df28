//go:build portaudio

// ABOUTME: PortAudio capture and render devices
// ABOUTME: Bridges PortAudio float32 callbacks to the byte-block device contract
package device

import (
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/Resonate-Protocol/echo-loopback/pkg/audio"
	"github.com/Resonate-Protocol/echo-loopback/pkg/audio/decode"
	"github.com/Resonate-Protocol/echo-loopback/pkg/audio/encode"
	"github.com/gordonklaus/portaudio"
)

// maxPortAudioChannels caps the channel count taken from the input device
const maxPortAudioChannels = 2

// PortAudioCapture captures from the default input device
type PortAudioCapture struct {
	stream  *portaudio.Stream
	format  audio.Format
	encoder encode.Encoder
	cb      CaptureCallbacks
	scratch []byte
	mu      sync.Mutex
}

// NewPortAudioCapture creates a PortAudio capture device
func NewPortAudioCapture() Capturer {
	return &PortAudioCapture{}
}

// Open initializes PortAudio and opens the default input stream
func (p *PortAudioCapture) Open() (audio.Format, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		return p.format, nil
	}

	if err := portaudio.Initialize(); err != nil {
		return audio.Format{}, deviceErr(BackendPortAudio, "initialize", err)
	}

	in, err := portaudio.DefaultInputDevice()
	if err != nil {
		portaudio.Terminate()
		return audio.Format{}, deviceErr(BackendPortAudio, "open capture", err)
	}

	params := portaudio.LowLatencyParameters(in, nil)
	params.Input.Channels = min(in.MaxInputChannels, maxPortAudioChannels)

	stream, err := portaudio.OpenStream(params, p.processAudio)
	if err != nil {
		portaudio.Terminate()
		return audio.Format{}, deviceErr(BackendPortAudio, "open capture", err)
	}

	format := audio.NewFloat32Format(int(params.SampleRate), params.Input.Channels)
	encoder, err := encode.NewFloat32(format)
	if err != nil {
		stream.Close()
		portaudio.Terminate()
		return audio.Format{}, deviceErr(BackendPortAudio, "open capture", err)
	}

	p.stream = stream
	p.format = format
	p.encoder = encoder

	log.Printf("Capture device opened: %s (portaudio/%s)", p.format, in.Name)

	return p.format, nil
}

// Start begins capture
func (p *PortAudioCapture) Start(cb CaptureCallbacks) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return deviceErr(BackendPortAudio, "start capture", ErrNotOpen)
	}

	p.cb = cb
	if err := p.stream.Start(); err != nil {
		return deviceErr(BackendPortAudio, "start capture", err)
	}
	return nil
}

func (p *PortAudioCapture) processAudio(in []float32) {
	if need := len(in) * 4; len(p.scratch) < need {
		p.scratch = make([]byte, need)
	}
	n, err := p.encoder.EncodeInto(p.scratch, in)
	if err != nil || p.cb.Data == nil {
		return
	}
	p.cb.Data(p.scratch[:n])
}

// Close stops the stream and releases PortAudio
func (p *PortAudioCapture) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return nil
	}

	var firstErr error
	if err := p.stream.Stop(); err != nil {
		firstErr = deviceErr(BackendPortAudio, "stop capture", err)
	}
	if err := p.stream.Close(); err != nil && firstErr == nil {
		firstErr = deviceErr(BackendPortAudio, "close capture", err)
	}
	p.stream = nil

	if err := portaudio.Terminate(); err != nil && firstErr == nil {
		firstErr = deviceErr(BackendPortAudio, "terminate", err)
	}
	return firstErr
}

// PortAudioRender plays to the default output device
type PortAudioRender struct {
	stream  *portaudio.Stream
	src     io.Reader
	decoder decode.Decoder
	scratch []byte
	mu      sync.Mutex
}

// NewPortAudioRender creates a PortAudio render device
func NewPortAudioRender() Renderer {
	return &PortAudioRender{}
}

// Open initializes PortAudio and opens the default output stream for format
func (p *PortAudioRender) Open(format audio.Format, src io.Reader) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := format.Validate(); err != nil {
		return deviceErr(BackendPortAudio, "open render", err)
	}
	if p.stream != nil {
		return nil
	}

	decoder, err := decode.NewFloat32(format)
	if err != nil {
		return deviceErr(BackendPortAudio, "open render", err)
	}

	if err := portaudio.Initialize(); err != nil {
		return deviceErr(BackendPortAudio, "initialize", err)
	}

	out, err := portaudio.DefaultOutputDevice()
	if err != nil {
		portaudio.Terminate()
		return deviceErr(BackendPortAudio, "open render", err)
	}

	params := portaudio.LowLatencyParameters(nil, out)
	params.Output.Channels = format.Channels
	params.SampleRate = float64(format.SampleRate)

	p.src = src
	p.decoder = decoder
	stream, err := portaudio.OpenStream(params, p.processAudio)
	if err != nil {
		portaudio.Terminate()
		return deviceErr(BackendPortAudio, "open render", fmt.Errorf("%s: %w", format, err))
	}
	p.stream = stream

	log.Printf("Render device opened: %s (portaudio/%s)", format, out.Name)

	return nil
}

// Start begins playback. PortAudio callbacks carry no stop notification,
// so onFault is unused.
func (p *PortAudioRender) Start(onFault func(error)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return deviceErr(BackendPortAudio, "start render", ErrNotOpen)
	}
	if err := p.stream.Start(); err != nil {
		return deviceErr(BackendPortAudio, "start render", err)
	}
	return nil
}

func (p *PortAudioRender) processAudio(out []float32) {
	need := len(out) * 4
	if len(p.scratch) < need {
		p.scratch = make([]byte, need)
	}
	fillFrom(p.src, p.scratch[:need])
	if _, err := p.decoder.DecodeInto(out, p.scratch[:need]); err != nil {
		clear(out)
	}
}

// Close stops the stream and releases PortAudio
func (p *PortAudioRender) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return nil
	}

	var firstErr error
	if err := p.stream.Stop(); err != nil {
		firstErr = deviceErr(BackendPortAudio, "stop render", err)
	}
	if err := p.stream.Close(); err != nil && firstErr == nil {
		firstErr = deviceErr(BackendPortAudio, "close render", err)
	}
	p.stream = nil

	if err := portaudio.Terminate(); err != nil && firstErr == nil {
		firstErr = deviceErr(BackendPortAudio, "terminate", err)
	}
	return firstErr
}
