// ABOUTME: Tests for synthetic devices
// ABOUTME: Tests tone capture delivery and render pulling without hardware
package device

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Resonate-Protocol/echo-loopback/pkg/audio"
	"github.com/Resonate-Protocol/echo-loopback/pkg/audio/decode"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before timeout")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestToneCaptureDeliversBlocks(t *testing.T) {
	format := audio.NewFloat32Format(48000, 2)
	capture := NewToneCapture(format)

	got, err := capture.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got != format {
		t.Errorf("expected format %v, got %v", format, got)
	}

	var mu sync.Mutex
	var blocks [][]byte
	err = capture.Start(CaptureCallbacks{
		Data: func(block []byte) {
			mu.Lock()
			defer mu.Unlock()
			blocks = append(blocks, bytes.Clone(block))
		},
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(blocks) >= 3
	})

	if err := capture.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()

	// 10ms at 48kHz stereo float32
	if len(blocks[0]) != 480*2*4 {
		t.Errorf("expected block of %d bytes, got %d", 480*2*4, len(blocks[0]))
	}
	samples, err := decode.Float32(blocks[1])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	var nonZero bool
	for _, s := range samples {
		if s != 0 {
			nonZero = true
			break
		}
	}
	if !nonZero {
		t.Error("expected tone samples, got silence")
	}
}

func TestToneCaptureStartBeforeOpen(t *testing.T) {
	capture := NewToneCapture(audio.NewFloat32Format(48000, 2))
	if err := capture.Start(CaptureCallbacks{}); !errors.Is(err, ErrNotOpen) {
		t.Errorf("expected ErrNotOpen, got %v", err)
	}
}

func TestToneCaptureInvalidFormat(t *testing.T) {
	capture := NewToneCapture(audio.NewFloat32Format(0, 2))
	_, err := capture.Open()
	if !errors.Is(err, ErrDevice) || !errors.Is(err, audio.ErrInvalidFormat) {
		t.Errorf("expected device error wrapping ErrInvalidFormat, got %v", err)
	}
}

func TestToneCaptureSimulateFault(t *testing.T) {
	capture := NewToneCapture(audio.NewFloat32Format(8000, 1))
	if _, err := capture.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer capture.Close()

	faults := make(chan error, 1)
	if err := capture.Start(CaptureCallbacks{Fault: func(err error) { faults <- err }}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	capture.SimulateFault(ErrDeviceLost)

	select {
	case err := <-faults:
		if !errors.Is(err, ErrDevice) || !errors.Is(err, ErrDeviceLost) {
			t.Errorf("unexpected fault: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("fault not delivered")
	}
}

type constReader byte

func (c constReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(c)
	}
	return len(p), nil
}

func TestRecordRenderPulls(t *testing.T) {
	render := NewRecordRender(100)
	if err := render.Open(audio.NewFloat32Format(8000, 1), constReader(7)); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := render.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return render.Pulls() >= 2 })

	if err := render.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := render.Rendered()
	if len(got) != 100 {
		t.Fatalf("expected 100 recorded bytes, got %d", len(got))
	}
	if !bytes.Equal(got, bytes.Repeat([]byte{7}, 100)) {
		t.Error("recorded bytes differ from source")
	}
}

func TestDiscardRenderKeepsNothing(t *testing.T) {
	render := NewDiscardRender()
	if err := render.Open(audio.NewFloat32Format(8000, 1), constReader(1)); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := render.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return render.Pulls() >= 1 })
	render.Close()

	if len(render.Rendered()) != 0 {
		t.Error("discard render recorded output")
	}
}
