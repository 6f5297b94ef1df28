// ABOUTME: Loopback session configuration
// ABOUTME: Defaults for echo decay, queue capacity and stats reporting
package loopback

import (
	"errors"
	"time"

	"github.com/Resonate-Protocol/echo-loopback/pkg/audio/effect"
	"github.com/Resonate-Protocol/echo-loopback/pkg/audio/stream"
)

// ErrConfig is returned when a session cannot be built from its configuration
var ErrConfig = errors.New("invalid loopback configuration")

// DefaultReportInterval is how often the monitor reports buffer health
const DefaultReportInterval = time.Second

// Config holds session configuration
type Config struct {
	// Decay is the echo tap gain in (0, 1) (default: 0.1)
	Decay float32

	// BufferCapacity is the capture-to-render queue size in bytes (default: 32768)
	BufferCapacity int

	// ReportInterval is how often drops and underruns are logged (default: 1s)
	ReportInterval time.Duration

	// OnStats is called from the monitor goroutine after every report
	OnStats func(Stats)

	// OnError is called once for a device failure that stopped the session
	OnError func(error)
}

// DefaultConfig returns the configuration used by the loopback binary
func DefaultConfig() Config {
	return Config{
		Decay:          effect.DefaultDecay,
		BufferCapacity: stream.DefaultCapacity,
		ReportInterval: DefaultReportInterval,
	}
}

// withDefaults fills zero fields from DefaultConfig
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Decay == 0 {
		c.Decay = d.Decay
	}
	if c.BufferCapacity == 0 {
		c.BufferCapacity = d.BufferCapacity
	}
	if c.ReportInterval <= 0 {
		c.ReportInterval = d.ReportInterval
	}
	return c
}
