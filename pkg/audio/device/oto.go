// ABOUTME: Oto-based render device
// ABOUTME: Plays float32 PCM pulled from a reader through an oto player
package device

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/Resonate-Protocol/echo-loopback/pkg/audio"
	"github.com/ebitengine/oto/v3"
)

// otoBufferDuration bounds how far ahead the oto player reads from src
const otoBufferDuration = 20 * time.Millisecond

// oto allows a single context per process, so it is shared by every OtoRender
var (
	otoMu     sync.Mutex
	otoCtx    *oto.Context
	otoFormat audio.Format
)

// OtoRender plays to the default output device through oto
type OtoRender struct {
	player *oto.Player
	format audio.Format
	mu     sync.Mutex
}

// NewOtoRender creates an oto render device
func NewOtoRender() *OtoRender {
	return &OtoRender{}
}

// Open prepares an oto player that pulls float32 bytes from src
func (o *OtoRender) Open(format audio.Format, src io.Reader) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := format.Validate(); err != nil {
		return deviceErr(BackendOto, "open render", err)
	}
	if o.player != nil {
		return nil
	}

	ctx, err := sharedOtoContext(format)
	if err != nil {
		return deviceErr(BackendOto, "open render", err)
	}

	o.player = ctx.NewPlayer(src)
	o.player.SetBufferSize(int(otoBufferDuration.Seconds() * float64(format.BytesPerSecond())))
	o.format = format

	log.Printf("Render device opened: %s (oto)", format)

	return nil
}

// Start begins playback. oto does not report device loss, so onFault is unused.
func (o *OtoRender) Start(onFault func(error)) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player == nil {
		return deviceErr(BackendOto, "start render", ErrNotOpen)
	}

	otoMu.Lock()
	err := otoCtx.Resume()
	otoMu.Unlock()
	if err != nil {
		return deviceErr(BackendOto, "start render", err)
	}

	o.player.Play()
	return nil
}

// Close stops the player and suspends the shared context
func (o *OtoRender) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player == nil {
		return nil
	}

	o.player.Pause()
	closeErr := o.player.Close()
	o.player = nil

	otoMu.Lock()
	defer otoMu.Unlock()
	if otoCtx != nil {
		if err := otoCtx.Suspend(); err != nil {
			log.Printf("Warning: oto suspend error: %v", err)
		}
	}

	if closeErr != nil {
		return deviceErr(BackendOto, "close render", closeErr)
	}
	return nil
}

// sharedOtoContext creates the process-wide oto context on first use
func sharedOtoContext(format audio.Format) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if otoFormat.SampleRate != format.SampleRate || otoFormat.Channels != format.Channels {
			return nil, fmt.Errorf("oto context already running at %s, cannot reopen at %s", otoFormat, format)
		}
		return otoCtx, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   otoBufferDuration,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	otoCtx = ctx
	otoFormat = format
	return otoCtx, nil
}
