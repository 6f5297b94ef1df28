// ABOUTME: Per-block processing chain run inside the capture callback
// ABOUTME: Decodes, applies the echo, re-encodes and queues each block
package loopback

import (
	"fmt"

	"github.com/Resonate-Protocol/echo-loopback/pkg/audio"
	"github.com/Resonate-Protocol/echo-loopback/pkg/audio/decode"
	"github.com/Resonate-Protocol/echo-loopback/pkg/audio/effect"
	"github.com/Resonate-Protocol/echo-loopback/pkg/audio/encode"
	"github.com/Resonate-Protocol/echo-loopback/pkg/audio/stream"
)

// Pipeline turns captured blocks into queued, echoed blocks. It is owned by
// the capture context and is not safe for concurrent use.
type Pipeline struct {
	format  audio.Format
	decoder decode.Decoder
	encoder encode.Encoder
	echo    *effect.Echo
	buffer  *stream.Buffer
	samples []float32
	out     []byte
}

// NewPipeline creates a pipeline for format that pushes into buf. The
// decoder and encoder are built from the same format so both ends agree.
func NewPipeline(format audio.Format, decay float32, buf *stream.Buffer) (*Pipeline, error) {
	decoder, err := decode.NewFloat32(format)
	if err != nil {
		return nil, fmt.Errorf("%w: decoder: %w", ErrConfig, err)
	}

	encoder, err := encode.NewFloat32(format)
	if err != nil {
		decoder.Close()
		return nil, fmt.Errorf("%w: encoder: %w", ErrConfig, err)
	}

	p := &Pipeline{
		format:  format,
		decoder: decoder,
		encoder: encoder,
		buffer:  buf,
	}

	if err := format.Validate(); err != nil {
		p.Close()
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	p.echo, err = effect.NewEchoForFormat(format, decay)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	// Scratch for 10ms blocks up front; larger blocks grow it once
	initial := format.SampleRate / 100 * format.Channels
	p.samples = make([]float32, initial)
	p.out = make([]byte, initial*4)

	return p, nil
}

// ProcessBlock runs decode, echo, encode and push for one captured block.
// On error nothing is queued and the echo state is unchanged.
func (p *Pipeline) ProcessBlock(block []byte) error {
	if len(block)%4 != 0 {
		return fmt.Errorf("decode block: %w: got %d bytes", decode.ErrInvalidInput, len(block))
	}

	n := len(block) / 4
	if n > len(p.samples) {
		p.samples = make([]float32, n)
		p.out = make([]byte, n*4)
	}
	samples := p.samples[:n]

	if _, err := p.decoder.DecodeInto(samples, block); err != nil {
		return fmt.Errorf("decode block: %w", err)
	}

	p.echo.Process(samples)

	written, err := p.encoder.EncodeInto(p.out, samples)
	if err != nil {
		return fmt.Errorf("encode block: %w", err)
	}

	p.buffer.Push(p.out[:written])
	return nil
}

// Reset clears the echo history so a restarted session does not replay
// audio captured before the restart
func (p *Pipeline) Reset() {
	p.echo.Reset()
}

// Close releases the codec
func (p *Pipeline) Close() error {
	decErr := p.decoder.Close()
	encErr := p.encoder.Close()
	if decErr != nil {
		return decErr
	}
	return encErr
}

// Format returns the format the pipeline was built for
func (p *Pipeline) Format() audio.Format { return p.format }

// Echo returns the pipeline's echo effect
func (p *Pipeline) Echo() *effect.Echo { return p.echo }
