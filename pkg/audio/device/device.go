// ABOUTME: Device interfaces for push-mode capture and pull-mode render
// ABOUTME: Defines callbacks, the DeviceError type and the backend factory
package device

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/Resonate-Protocol/echo-loopback/pkg/audio"
)

// Backend names accepted by New
const (
	BackendMalgo     = "malgo"
	BackendOto       = "oto"
	BackendPortAudio = "portaudio"
	BackendSynthetic = "synthetic"
)

var (
	// ErrDevice matches every *DeviceError via errors.Is
	ErrDevice = errors.New("audio device error")

	// ErrDeviceLost is reported when a running device stops on its own
	ErrDeviceLost = errors.New("device stopped unexpectedly")

	// ErrNotOpen is returned when Start is called before Open
	ErrNotOpen = errors.New("device not open")

	// ErrUnsupportedFormat is returned when a device cannot deliver float32 samples
	ErrUnsupportedFormat = errors.New("unsupported device format")

	// ErrUnknownBackend is returned by New for an unrecognised backend name
	ErrUnknownBackend = errors.New("unknown audio backend")
)

// DeviceError reports a failure of the platform audio subsystem
type DeviceError struct {
	Backend string
	Op      string
	Err     error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrDevice) true for any DeviceError
func (e *DeviceError) Is(target error) bool { return target == ErrDevice }

func deviceErr(backend, op string, err error) error {
	return &DeviceError{Backend: backend, Op: op, Err: err}
}

// CaptureCallbacks are invoked from the capture context
type CaptureCallbacks struct {
	// Data receives each captured block. The block is only valid for the
	// duration of the call.
	Data func(block []byte)

	// Fault is called at most once when the device stops unexpectedly
	Fault func(err error)
}

// Capturer is the default input endpoint in event-driven (push) mode
type Capturer interface {
	// Open acquires the device and returns its native format as float32
	Open() (audio.Format, error)

	// Start begins delivering blocks to cb
	Start(cb CaptureCallbacks) error

	// Close stops capture and releases the device. Safe to call repeatedly
	// and on a device that was never opened.
	Close() error
}

// Renderer is the default output endpoint in shared, pulled mode
type Renderer interface {
	// Open acquires the device for format; the device pulls from src
	Open(format audio.Format, src io.Reader) error

	// Start begins playback; onFault is called at most once if the device
	// stops unexpectedly
	Start(onFault func(err error)) error

	// Close stops playback and releases the device. Safe to call repeatedly
	// and on a device that was never opened.
	Close() error
}

// New returns the capture and render pair for a backend name
func New(backend string) (Capturer, Renderer, error) {
	switch backend {
	case "", BackendMalgo:
		return NewMalgoCapture(), NewMalgoRender(), nil
	case BackendOto:
		return NewMalgoCapture(), NewOtoRender(), nil
	case BackendPortAudio:
		return NewPortAudioCapture(), NewPortAudioRender(), nil
	case BackendSynthetic:
		return NewToneCapture(audio.NewFloat32Format(48000, 2)), NewDiscardRender(), nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// fillFrom reads src into out until it is full, padding with silence if src
// runs dry. It does not allocate.
func fillFrom(src io.Reader, out []byte) {
	filled := 0
	for filled < len(out) {
		n, err := src.Read(out[filled:])
		filled += n
		if err != nil || n == 0 {
			break
		}
	}
	clear(out[filled:])
}

// faultLatch turns backend stop notifications into at most one fault per
// started run. Notifications after disarm are our own shutdown.
type faultLatch struct {
	closing atomic.Bool
	faulted atomic.Bool
}

// arm starts a new run; called on every Start so a reopened device can
// report a new loss
func (l *faultLatch) arm() {
	l.closing.Store(false)
	l.faulted.Store(false)
}

// disarm marks the device as closing on purpose
func (l *faultLatch) disarm() {
	l.closing.Store(true)
}

// fire reports whether a stop notification is the first unexpected one
func (l *faultLatch) fire() bool {
	return !l.closing.Load() && l.faulted.CompareAndSwap(false, true)
}
