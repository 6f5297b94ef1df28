// ABOUTME: Bounded single-producer/single-consumer byte FIFO
// ABOUTME: Decouples the capture callback from the render callback without locks
package stream

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// DefaultCapacity is the queue size between capture and render
const DefaultCapacity = 32768

// ErrInvalidCapacity is returned for a non-positive capacity
var ErrInvalidCapacity = errors.New("buffer capacity must be > 0")

// Stats is a snapshot of buffer counters
type Stats struct {
	Pushed    uint64 // bytes accepted by Push
	Pulled    uint64 // real bytes returned by Pull
	Dropped   uint64 // bytes discarded because the buffer was full
	Underruns uint64 // Pull calls that had to pad with silence
}

// Buffer is a fixed-capacity byte ring. Exactly one goroutine may push and
// exactly one may pull; the two never wait on each other.
//
// When full, Push keeps what is already queued and discards the newest
// bytes. When empty, Pull pads with zeros.
type Buffer struct {
	data []byte

	// Monotonic byte positions; write is owned by the producer and read by
	// the consumer. Used length is write-read.
	write atomic.Uint64
	read  atomic.Uint64

	pushed    atomic.Uint64
	pulled    atomic.Uint64
	dropped   atomic.Uint64
	underruns atomic.Uint64
}

// New creates a buffer holding at most capacity bytes
func New(capacity int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	return &Buffer{data: make([]byte, capacity)}, nil
}

// Push enqueues as much of p as fits and returns the number of bytes kept.
// The remainder of p is dropped and counted; queued content is never touched.
func (b *Buffer) Push(p []byte) int {
	if len(p) == 0 {
		return 0
	}

	w := b.write.Load()
	r := b.read.Load()
	size := uint64(len(b.data))
	free := size - (w - r)

	n := uint64(len(p))
	if n > free {
		b.dropped.Add(n - free)
		n = free
	}
	if n == 0 {
		return 0
	}

	start := w % size
	first := copy(b.data[start:], p[:n])
	if uint64(first) < n {
		copy(b.data, p[first:n])
	}

	b.write.Store(w + n)
	b.pushed.Add(n)
	return int(n)
}

// Pull fills p with queued bytes in order and zero-pads whatever is left.
// It returns the number of real bytes copied.
func (b *Buffer) Pull(p []byte) int {
	if len(p) == 0 {
		return 0
	}

	r := b.read.Load()
	w := b.write.Load()
	size := uint64(len(b.data))

	n := w - r
	if n > uint64(len(p)) {
		n = uint64(len(p))
	}

	if n > 0 {
		start := r % size
		first := copy(p[:n], b.data[start:])
		if uint64(first) < n {
			copy(p[first:n], b.data)
		}
		b.read.Store(r + n)
		b.pulled.Add(n)
	}

	if int(n) < len(p) {
		clear(p[n:])
		b.underruns.Add(1)
	}
	return int(n)
}

// Read implements io.Reader for pull-model renderers. It never blocks and
// never fails: missing data is returned as silence.
func (b *Buffer) Read(p []byte) (int, error) {
	b.Pull(p)
	return len(p), nil
}

// Buffered returns the number of bytes waiting to be pulled
func (b *Buffer) Buffered() int {
	return int(b.write.Load() - b.read.Load())
}

// Cap returns the buffer capacity in bytes
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Stats returns a snapshot of the buffer counters
func (b *Buffer) Stats() Stats {
	return Stats{
		Pushed:    b.pushed.Load(),
		Pulled:    b.pulled.Load(),
		Dropped:   b.dropped.Load(),
		Underruns: b.underruns.Load(),
	}
}

// Discard drops all queued bytes. Only the consumer may call it.
func (b *Buffer) Discard() int {
	w := b.write.Load()
	r := b.read.Load()
	b.read.Store(w)
	return int(w - r)
}
