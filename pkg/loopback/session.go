// ABOUTME: Loopback session wiring capture, echo pipeline, queue and render
// ABOUTME: Owns device lifecycle, fault handling and the stats monitor
package loopback

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/echo-loopback/pkg/audio"
	"github.com/Resonate-Protocol/echo-loopback/pkg/audio/device"
	"github.com/Resonate-Protocol/echo-loopback/pkg/audio/stream"
	"github.com/google/uuid"
)

// Stats contains session statistics
type Stats struct {
	Blocks    uint64 // captured blocks queued for render
	Skipped   uint64 // captured blocks dropped because processing failed
	Pushed    uint64 // bytes queued
	Pulled    uint64 // bytes rendered
	Dropped   uint64 // bytes discarded on a full queue
	Underruns uint64 // render pulls padded with silence
	Buffered  int    // bytes waiting in the queue
	Capacity  int    // queue capacity in bytes
}

// Session runs one capture → echo → render loop
type Session struct {
	id      string
	config  Config
	capture device.Capturer
	render  device.Renderer
	buffer  *stream.Buffer

	// Set by Start before any callback runs
	pipeline *Pipeline

	blocks  atomic.Uint64
	skipped atomic.Uint64
	lastErr atomic.Pointer[error]

	errors  chan error
	faulted atomic.Bool

	mu      sync.Mutex
	running bool
	runID   uint64
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a session over the given devices
func New(config Config, capture device.Capturer, render device.Renderer) (*Session, error) {
	config = config.withDefaults()

	buf, err := stream.New(config.BufferCapacity)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	return &Session{
		id:      uuid.New().String(),
		config:  config,
		capture: capture,
		render:  render,
		buffer:  buf,
		errors:  make(chan error, 2),
	}, nil
}

// Start opens capture, sizes the echo from the capture format, then starts
// render and capture. On any failure everything already opened is closed.
// Cancelling ctx stops the session as Stop does.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if err := s.start(); err != nil {
		s.closeDevices()
		return err
	}

	monitorCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.runID++

	s.wg.Add(1)
	go s.monitor(monitorCtx, s.runID)

	log.Printf("Session %s started: %s, echo %d samples, decay %.2f, queue %d bytes",
		s.id, s.pipeline.Format(), s.pipeline.Echo().Len(), s.config.Decay, s.buffer.Cap())

	return nil
}

// start performs the open/start sequence (must hold s.mu)
func (s *Session) start() error {
	format, err := s.capture.Open()
	if err != nil {
		return err
	}
	if err := format.Validate(); err != nil {
		return &device.DeviceError{Backend: "capture", Op: "negotiate format", Err: err}
	}

	// A restart on the same format keeps the pipeline and its scratch
	if s.pipeline != nil && s.pipeline.Format() == format {
		s.pipeline.Reset()
	} else {
		pipeline, err := NewPipeline(format, s.config.Decay, s.buffer)
		if err != nil {
			return fmt.Errorf("failed to create pipeline: %w", err)
		}
		if s.pipeline != nil {
			s.pipeline.Close()
		}
		s.pipeline = pipeline
	}
	s.buffer.Discard()
	s.faulted.Store(false)

	if err := s.render.Open(format, s.buffer); err != nil {
		return err
	}
	if err := s.render.Start(s.onFault); err != nil {
		return err
	}

	return s.capture.Start(device.CaptureCallbacks{
		Data:  s.onBlock,
		Fault: s.onFault,
	})
}

// onBlock runs on the capture context for every captured block. A failed
// block is counted and skipped; nothing here blocks or logs.
func (s *Session) onBlock(block []byte) {
	if err := s.pipeline.ProcessBlock(block); err != nil {
		s.skipped.Add(1)
		s.lastErr.Store(&err)
		return
	}
	s.blocks.Add(1)
}

// onFault handles a device that stopped on its own
func (s *Session) onFault(err error) {
	if !s.faulted.CompareAndSwap(false, true) {
		return
	}

	select {
	case s.errors <- err:
	default:
	}

	// Device callbacks must not close their own device
	go func() {
		log.Printf("Device failure: %v", err)
		if stopErr := s.Stop(); stopErr != nil {
			log.Printf("Warning: stop after device failure: %v", stopErr)
		}
		if s.config.OnError != nil {
			s.config.OnError(err)
		}
	}()
}

// Stop halts capture and render and releases both devices. It is safe to
// call more than once, before Start, and after a failed Start.
func (s *Session) Stop() error {
	s.mu.Lock()
	return s.stopLocked()
}

// stopIfCurrent stops the session only if it is still the run identified by
// runID, so a late cancellation cannot stop a restarted session
func (s *Session) stopIfCurrent(runID uint64) error {
	s.mu.Lock()
	if !s.running || s.runID != runID {
		s.mu.Unlock()
		return nil
	}
	return s.stopLocked()
}

// stopLocked performs Stop; it is entered holding s.mu and releases it
func (s *Session) stopLocked() error {
	err := s.closeDevices()
	wasRunning := s.running
	if s.running {
		s.cancel()
		s.running = false
	}
	s.mu.Unlock()

	if wasRunning {
		s.wg.Wait()

		stats := s.Stats()
		log.Printf("Session %s stopped: %d blocks, %d skipped, %d bytes dropped, %d underruns",
			s.id, stats.Blocks, stats.Skipped, stats.Dropped, stats.Underruns)
	}

	return err
}

// closeDevices closes capture then render and returns the first error
// (must hold s.mu)
func (s *Session) closeDevices() error {
	captureErr := s.capture.Close()
	renderErr := s.render.Close()

	if captureErr != nil {
		return asDeviceError("capture", captureErr)
	}
	if renderErr != nil {
		return asDeviceError("render", renderErr)
	}
	return nil
}

func asDeviceError(side string, err error) error {
	var devErr *device.DeviceError
	if errors.As(err, &devErr) {
		return err
	}
	return &device.DeviceError{Backend: side, Op: "close", Err: err}
}

// monitor logs queue health off the real-time path. When ctx is cancelled
// from outside it stops the session it belongs to.
func (s *Session) monitor(ctx context.Context, runID uint64) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.ReportInterval)
	defer ticker.Stop()

	var last Stats
	for {
		select {
		case <-ctx.Done():
			// Stop waits for this goroutine, so it must run elsewhere
			go func() {
				if err := s.stopIfCurrent(runID); err != nil {
					log.Printf("Warning: stop after cancellation: %v", err)
				}
			}()
			return
		case <-ticker.C:
			stats := s.Stats()
			s.report(last, stats)
			last = stats

			if s.config.OnStats != nil {
				s.config.OnStats(stats)
			}
		}
	}
}

// report logs what changed since the previous report
func (s *Session) report(prev, cur Stats) {
	if d := cur.Dropped - prev.Dropped; d > 0 {
		log.Printf("Warning: queue full, discarded %d bytes", d)
	}
	if d := cur.Skipped - prev.Skipped; d > 0 {
		var last error
		if p := s.lastErr.Load(); p != nil {
			last = *p
		}
		log.Printf("Warning: skipped %d blocks: %v", d, last)
	}
	if d := cur.Underruns - prev.Underruns; d > 0 && cur.Blocks > 0 {
		log.Printf("Render underruns: %d", d)
	}
}

// Stats returns a snapshot of session statistics
func (s *Session) Stats() Stats {
	bs := s.buffer.Stats()
	return Stats{
		Blocks:    s.blocks.Load(),
		Skipped:   s.skipped.Load(),
		Pushed:    bs.Pushed,
		Pulled:    bs.Pulled,
		Dropped:   bs.Dropped,
		Underruns: bs.Underruns,
		Buffered:  s.buffer.Buffered(),
		Capacity:  s.buffer.Cap(),
	}
}

// Errors delivers device failures that stopped the session
func (s *Session) Errors() <-chan error {
	return s.errors
}

// ID returns the session identifier
func (s *Session) ID() string { return s.id }

// Format returns the negotiated format (zero before Start)
func (s *Session) Format() audio.Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pipeline == nil {
		return audio.Format{}
	}
	return s.pipeline.Format()
}

// EchoLen returns the echo length in samples (zero before Start)
func (s *Session) EchoLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pipeline == nil {
		return 0
	}
	return s.pipeline.Echo().Len()
}

// Running reports whether the session is between Start and Stop
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
