// ABOUTME: Malgo-based capture and render devices
// ABOUTME: Uses miniaudio via malgo for callback-driven float32 I/O
package device

import (
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/Resonate-Protocol/echo-loopback/pkg/audio"
	"github.com/gen2brain/malgo"
)

// MalgoCapture captures from the default input device
type MalgoCapture struct {
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	format   audio.Format
	cb       CaptureCallbacks

	faults faultLatch
	mu     sync.Mutex
}

// NewMalgoCapture creates a capture device for the default input endpoint
func NewMalgoCapture() *MalgoCapture {
	return &MalgoCapture{}
}

// Open initializes the default capture device in its native layout,
// converted to float32 by miniaudio
func (m *MalgoCapture) Open() (audio.Format, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return m.format, nil
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return audio.Format{}, deviceErr(BackendMalgo, "init context", err)
	}
	m.malgoCtx = ctx

	// Zero channels and sample rate select the device's native mix format
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 0
	deviceConfig.SampleRate = 0
	deviceConfig.Alsa.NoMMap = 1

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: m.dataCallback,
		Stop: m.stopCallback,
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		m.freeContext()
		return audio.Format{}, deviceErr(BackendMalgo, "open capture", err)
	}

	if device.CaptureFormat() != malgo.FormatF32 {
		device.Uninit()
		m.freeContext()
		return audio.Format{}, deviceErr(BackendMalgo, "open capture",
			fmt.Errorf("%w: %s", ErrUnsupportedFormat, formatName(device.CaptureFormat())))
	}

	m.device = device
	m.format = audio.NewFloat32Format(int(device.SampleRate()), int(device.CaptureChannels()))

	log.Printf("Capture device opened: %s (malgo/%s)", m.format, formatName(device.CaptureFormat()))

	return m.format, nil
}

// Start begins capture
func (m *MalgoCapture) Start(cb CaptureCallbacks) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return deviceErr(BackendMalgo, "start capture", ErrNotOpen)
	}

	m.cb = cb
	m.faults.arm()
	if err := m.device.Start(); err != nil {
		return deviceErr(BackendMalgo, "start capture", err)
	}
	return nil
}

// dataCallback is called by malgo with each captured period
func (m *MalgoCapture) dataCallback(pOutputSample, pInputSamples []byte, frameCount uint32) {
	if m.cb.Data != nil {
		m.cb.Data(pInputSamples)
	}
}

// stopCallback is called by malgo whenever the device stops, including on
// our own Close
func (m *MalgoCapture) stopCallback() {
	if m.cb.Fault == nil {
		return
	}
	if m.faults.fire() {
		m.cb.Fault(deviceErr(BackendMalgo, "capture", ErrDeviceLost))
	}
}

// Close stops and releases the capture device
func (m *MalgoCapture) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.faults.disarm()

	var stopErr error
	if m.device != nil {
		if m.device.IsStarted() {
			if err := m.device.Stop(); err != nil {
				stopErr = deviceErr(BackendMalgo, "stop capture", err)
			}
		}
		m.device.Uninit()
		m.device = nil
	}
	m.freeContext()

	return stopErr
}

// freeContext releases the malgo context (must hold m.mu)
func (m *MalgoCapture) freeContext() {
	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Printf("Warning: malgo context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
}

// MalgoRender plays to the default output device
type MalgoRender struct {
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	src      io.Reader
	onFault  func(error)

	faults faultLatch
	mu     sync.Mutex
}

// NewMalgoRender creates a render device for the default output endpoint
func NewMalgoRender() *MalgoRender {
	return &MalgoRender{}
}

// Open initializes the default playback device in shared mode
func (m *MalgoRender) Open(format audio.Format, src io.Reader) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := format.Validate(); err != nil {
		return deviceErr(BackendMalgo, "open render", err)
	}
	if m.device != nil {
		return nil
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return deviceErr(BackendMalgo, "init context", err)
	}
	m.malgoCtx = ctx
	m.src = src

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = uint32(format.Channels)
	deviceConfig.Playback.ShareMode = malgo.Shared
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: m.dataCallback,
		Stop: m.stopCallback,
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		m.freeContext()
		return deviceErr(BackendMalgo, "open render", err)
	}

	m.device = device

	log.Printf("Render device opened: %s (malgo/%s)", format, formatName(malgo.FormatF32))

	return nil
}

// Start begins playback
func (m *MalgoRender) Start(onFault func(error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return deviceErr(BackendMalgo, "start render", ErrNotOpen)
	}

	m.onFault = onFault
	m.faults.arm()
	if err := m.device.Start(); err != nil {
		return deviceErr(BackendMalgo, "start render", err)
	}
	return nil
}

// dataCallback is called by malgo to fill the audio output buffer
func (m *MalgoRender) dataCallback(pOutputSample, pInputSamples []byte, frameCount uint32) {
	fillFrom(m.src, pOutputSample)
}

func (m *MalgoRender) stopCallback() {
	if m.onFault == nil {
		return
	}
	if m.faults.fire() {
		m.onFault(deviceErr(BackendMalgo, "render", ErrDeviceLost))
	}
}

// Close stops and releases the render device
func (m *MalgoRender) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.faults.disarm()

	var stopErr error
	if m.device != nil {
		if m.device.IsStarted() {
			if err := m.device.Stop(); err != nil {
				stopErr = deviceErr(BackendMalgo, "stop render", err)
			}
		}
		m.device.Uninit()
		m.device = nil
	}
	m.freeContext()

	return stopErr
}

// freeContext releases the malgo context (must hold m.mu)
func (m *MalgoRender) freeContext() {
	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Printf("Warning: malgo context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
}

// formatName returns human-readable format name
func formatName(format malgo.FormatType) string {
	switch format {
	case malgo.FormatS16:
		return "S16"
	case malgo.FormatS24:
		return "S24"
	case malgo.FormatS32:
		return "S32"
	case malgo.FormatF32:
		return "F32"
	default:
		return fmt.Sprintf("Unknown(%d)", format)
	}
}
