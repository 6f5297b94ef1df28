// ABOUTME: Tests for session lifecycle
// ABOUTME: Tests start/stop ordering, partial start failure, faults and stats with fake devices
package loopback

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Resonate-Protocol/echo-loopback/pkg/audio"
	"github.com/Resonate-Protocol/echo-loopback/pkg/audio/decode"
	"github.com/Resonate-Protocol/echo-loopback/pkg/audio/device"
	"github.com/Resonate-Protocol/echo-loopback/pkg/audio/effect"
	"github.com/Resonate-Protocol/echo-loopback/pkg/audio/encode"
)

// fakeCapture delivers blocks only when the test calls emit
type fakeCapture struct {
	format  audio.Format
	openErr error
	cb      device.CaptureCallbacks
	started bool
	closes  atomic.Int32
	mu      sync.Mutex
}

func (f *fakeCapture) Open() (audio.Format, error) {
	if f.openErr != nil {
		return audio.Format{}, f.openErr
	}
	return f.format, nil
}

func (f *fakeCapture) Start(cb device.CaptureCallbacks) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cb = cb
	f.started = true
	return nil
}

func (f *fakeCapture) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes.Add(1)
	f.started = false
	return nil
}

func (f *fakeCapture) emit(block []byte) {
	f.mu.Lock()
	cb := f.cb
	started := f.started
	f.mu.Unlock()
	if started && cb.Data != nil {
		cb.Data(block)
	}
}

func (f *fakeCapture) fault(err error) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	cb.Fault(err)
}

// fakeRender pulls only when the test calls pull
type fakeRender struct {
	openErr  error
	startErr error
	closeErr error
	src      io.Reader
	closes   atomic.Int32
}

func (f *fakeRender) Open(format audio.Format, src io.Reader) error {
	if f.openErr != nil {
		return f.openErr
	}
	f.src = src
	return nil
}

func (f *fakeRender) Start(onFault func(error)) error {
	return f.startErr
}

func (f *fakeRender) Close() error {
	f.closes.Add(1)
	return f.closeErr
}

func (f *fakeRender) pull(n int) []byte {
	p := make([]byte, n)
	io.ReadFull(f.src, p)
	return p
}

func newFakeSession(t *testing.T, format audio.Format) (*Session, *fakeCapture, *fakeRender) {
	t.Helper()
	capture := &fakeCapture{format: format}
	render := &fakeRender{}
	s, err := New(Config{Decay: 0.5}, capture, render)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, capture, render
}

func TestNewDefaults(t *testing.T) {
	s, err := New(Config{}, &fakeCapture{}, &fakeRender{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if s.config.Decay != effect.DefaultDecay {
		t.Errorf("expected decay %v, got %v", effect.DefaultDecay, s.config.Decay)
	}
	if s.buffer.Cap() != 32768 {
		t.Errorf("expected capacity 32768, got %d", s.buffer.Cap())
	}
	if s.config.ReportInterval != DefaultReportInterval {
		t.Errorf("expected report interval %v, got %v", DefaultReportInterval, s.config.ReportInterval)
	}
	if s.ID() == "" {
		t.Error("expected a session ID")
	}
}

func TestNewInvalidCapacity(t *testing.T) {
	_, err := New(Config{BufferCapacity: -1}, &fakeCapture{}, &fakeRender{})
	if !errors.Is(err, ErrConfig) {
		t.Errorf("expected ErrConfig, got %v", err)
	}
}

func TestSessionIDsAreUnique(t *testing.T) {
	a, _ := New(Config{}, &fakeCapture{}, &fakeRender{})
	b, _ := New(Config{}, &fakeCapture{}, &fakeRender{})
	if a.ID() == b.ID() {
		t.Errorf("expected distinct session IDs, both %s", a.ID())
	}
}

func TestSessionProcessesCapturedBlocks(t *testing.T) {
	s, capture, render := newFakeSession(t, audio.NewFloat32Format(400, 1))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	if !s.Running() {
		t.Error("expected session to be running")
	}
	if s.Format() != audio.NewFloat32Format(400, 1) {
		t.Errorf("unexpected format: %v", s.Format())
	}

	// Echo length is 100 samples
	impulse := make([]float32, 101)
	impulse[0] = 1
	capture.emit(encode.Float32(impulse))

	out, err := decode.Float32(render.pull(101 * 4))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out[0] != 1 || out[100] != 0.5 {
		t.Errorf("expected impulse and echo, got %v and %v", out[0], out[100])
	}

	stats := s.Stats()
	if stats.Blocks != 1 {
		t.Errorf("expected 1 block, got %d", stats.Blocks)
	}
	if stats.Pushed != 404 || stats.Pulled != 404 {
		t.Errorf("expected 404 bytes through the queue, got pushed=%d pulled=%d", stats.Pushed, stats.Pulled)
	}
}

func TestSessionSkipsMalformedBlock(t *testing.T) {
	s, capture, _ := newFakeSession(t, audio.NewFloat32Format(400, 1))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	capture.emit([]byte{1, 2, 3})
	capture.emit(make([]byte, 8))

	stats := s.Stats()
	if stats.Skipped != 1 {
		t.Errorf("expected 1 skipped block, got %d", stats.Skipped)
	}
	if stats.Blocks != 1 {
		t.Errorf("expected 1 processed block, got %d", stats.Blocks)
	}
	if stats.Buffered != 8 {
		t.Errorf("expected only the good block queued, got %d bytes", stats.Buffered)
	}
	if p := s.lastErr.Load(); p == nil || !errors.Is(*p, decode.ErrInvalidInput) {
		t.Errorf("expected last error to be ErrInvalidInput")
	}
}

func TestSessionStartCaptureOpenFailure(t *testing.T) {
	openErr := &device.DeviceError{Backend: "fake", Op: "open capture", Err: device.ErrDeviceLost}
	capture := &fakeCapture{openErr: openErr}
	render := &fakeRender{}
	s, _ := New(Config{}, capture, render)

	err := s.Start(context.Background())
	if !errors.Is(err, device.ErrDevice) {
		t.Fatalf("expected device error, got %v", err)
	}
	if s.Running() {
		t.Error("expected session not running")
	}
	if capture.closes.Load() != 1 || render.closes.Load() != 1 {
		t.Errorf("expected both devices closed once, got capture=%d render=%d",
			capture.closes.Load(), render.closes.Load())
	}

	if err := s.Stop(); err != nil {
		t.Errorf("Stop after failed Start: %v", err)
	}
}

func TestSessionStartRenderFailure(t *testing.T) {
	capture := &fakeCapture{format: audio.NewFloat32Format(48000, 2)}
	render := &fakeRender{startErr: &device.DeviceError{Backend: "fake", Op: "start render", Err: errors.New("busy")}}
	s, _ := New(Config{}, capture, render)

	err := s.Start(context.Background())
	if !errors.Is(err, device.ErrDevice) {
		t.Fatalf("expected device error, got %v", err)
	}
	if capture.started {
		t.Error("capture must not be left running after render failure")
	}
	if capture.closes.Load() == 0 {
		t.Error("expected capture closed after partial start")
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop after partial start: %v", err)
	}
}

func TestSessionStartDegenerateFormat(t *testing.T) {
	// Valid format whose quarter second is zero samples
	capture := &fakeCapture{format: audio.NewFloat32Format(2, 1)}
	render := &fakeRender{}
	s, _ := New(Config{}, capture, render)

	err := s.Start(context.Background())
	if !errors.Is(err, ErrConfig) || !errors.Is(err, effect.ErrDegenerateConfig) {
		t.Fatalf("expected ErrConfig wrapping ErrDegenerateConfig, got %v", err)
	}
	if render.src != nil {
		t.Error("render must not be opened when the echo cannot be sized")
	}
	if capture.closes.Load() != 1 {
		t.Errorf("expected capture closed, got %d closes", capture.closes.Load())
	}
}

func TestSessionStartInvalidFormatIsDeviceError(t *testing.T) {
	capture := &fakeCapture{format: audio.Format{Codec: audio.CodecFloat32, SampleRate: 48000, Channels: 2, BitDepth: 16}}
	s, _ := New(Config{}, capture, &fakeRender{})

	err := s.Start(context.Background())
	if !errors.Is(err, device.ErrDevice) || !errors.Is(err, audio.ErrInvalidFormat) {
		t.Fatalf("expected device error wrapping ErrInvalidFormat, got %v", err)
	}
}

func TestSessionStopIdempotent(t *testing.T) {
	s, capture, render := newFakeSession(t, audio.NewFloat32Format(48000, 2))

	if err := s.Stop(); err != nil {
		t.Errorf("Stop before Start: %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := s.Stop(); err != nil {
			t.Errorf("Stop %d: %v", i, err)
		}
	}
	if s.Running() {
		t.Error("expected session stopped")
	}

	// Blocks after stop are ignored by the stopped capture
	capture.emit(make([]byte, 8))
	if s.Stats().Blocks != 0 {
		t.Error("block processed after stop")
	}
	if render.closes.Load() < 1 {
		t.Error("expected render closed")
	}
}

func TestSessionStopReportsCloseError(t *testing.T) {
	capture := &fakeCapture{format: audio.NewFloat32Format(48000, 2)}
	render := &fakeRender{closeErr: errors.New("handle leak")}
	s, _ := New(Config{}, capture, render)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	err := s.Stop()
	if !errors.Is(err, device.ErrDevice) {
		t.Errorf("expected device error from Stop, got %v", err)
	}
}

func TestSessionFaultStopsSession(t *testing.T) {
	onError := make(chan error, 1)
	capture := &fakeCapture{format: audio.NewFloat32Format(48000, 2)}
	render := &fakeRender{}
	s, _ := New(Config{OnError: func(err error) { onError <- err }}, capture, render)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	lost := &device.DeviceError{Backend: "fake", Op: "capture", Err: device.ErrDeviceLost}
	capture.fault(lost)
	capture.fault(lost) // reported once

	select {
	case err := <-s.Errors():
		if !errors.Is(err, device.ErrDeviceLost) {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("fault not reported on Errors()")
	}

	select {
	case <-onError:
	case <-time.After(time.Second):
		t.Fatal("OnError not called")
	}

	if s.Running() {
		t.Error("expected session stopped after fault")
	}
	if capture.closes.Load() == 0 || render.closes.Load() == 0 {
		t.Error("expected both devices closed after fault")
	}

	select {
	case err := <-s.Errors():
		t.Errorf("expected a single fault, got second: %v", err)
	default:
	}
}

func TestSessionContextCancelStops(t *testing.T) {
	capture := &fakeCapture{format: audio.NewFloat32Format(48000, 2)}
	render := &fakeRender{}
	s, _ := New(Config{ReportInterval: 10 * time.Millisecond}, capture, render)

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for s.Running() {
		if time.Now().After(deadline) {
			t.Fatal("session still running after context cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if capture.closes.Load() == 0 || render.closes.Load() == 0 {
		t.Error("expected both devices closed after cancel")
	}

	// A restart is not stopped by the earlier cancellation
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer s.Stop()
	time.Sleep(50 * time.Millisecond)
	if !s.Running() {
		t.Error("restarted session was stopped by a stale cancellation")
	}
}

func TestSessionRestartClearsEcho(t *testing.T) {
	s, capture, render := newFakeSession(t, audio.NewFloat32Format(400, 1))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.EchoLen() != 100 {
		t.Errorf("expected echo length 100, got %d", s.EchoLen())
	}
	capture.emit(encode.Float32(ones(50)))
	first := s.pipeline
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer s.Stop()

	if s.pipeline != first {
		t.Error("expected the pipeline to be reused for the same format")
	}

	// Without a reset the second half of this period would echo the ones
	capture.emit(make([]byte, 100*4))
	out, err := decode.Float32(render.pull(100 * 4))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i, v := range out {
		if v != 0 {
			t.Fatalf("sample %d: expected silence after restart, got %v", i, v)
		}
	}
}

func TestSessionReportsStats(t *testing.T) {
	statsCh := make(chan Stats, 16)
	capture := &fakeCapture{format: audio.NewFloat32Format(48000, 2)}
	s, _ := New(Config{
		ReportInterval: 10 * time.Millisecond,
		OnStats: func(st Stats) {
			select {
			case statsCh <- st:
			default:
			}
		},
	}, capture, &fakeRender{})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	capture.emit(make([]byte, 40000))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case st := <-statsCh:
			if st.Dropped == 40000-32768 {
				if st.Buffered != 32768 || st.Capacity != 32768 {
					t.Errorf("unexpected queue state: %+v", st)
				}
				return
			}
		case <-deadline:
			t.Fatal("no stats report with the overflow")
		}
	}
}

func TestSessionWithSyntheticDevices(t *testing.T) {
	format := audio.NewFloat32Format(48000, 2)
	capture := device.NewToneCapture(format)
	render := device.NewRecordRender(format.BytesPerSecond() * 3)

	s, err := New(DefaultConfig(), capture, render)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for s.Stats().Pulled == 0 {
		if time.Now().After(deadline) {
			s.Stop()
			t.Fatal("render never received captured audio")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	stats := s.Stats()
	if stats.Blocks == 0 {
		t.Error("expected processed blocks")
	}
	if stats.Skipped != 0 {
		t.Errorf("expected no skipped blocks, got %d", stats.Skipped)
	}

	rendered := render.Rendered()
	var nonZero bool
	for _, b := range rendered {
		if b != 0 {
			nonZero = true
			break
		}
	}
	if !nonZero {
		t.Error("expected rendered tone, got silence")
	}
}
