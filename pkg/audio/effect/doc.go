// ABOUTME: Audio effect package for the loopback
// ABOUTME: Provides the quarter-second feed-forward Echo
// Package effect implements the echo applied to captured audio.
//
// The Echo keeps a circular buffer of 0.25 seconds of interleaved samples.
// Each incoming sample is mixed with the sample stored one period earlier,
// scaled by a decay coefficient, and the dry sample replaces it:
//
//	echo, err := effect.NewEcho(48000, 2, effect.DefaultDecay)
//	if err != nil {
//	    return err // effect.ErrDegenerateConfig
//	}
//	echo.Process(samples) // in place
package effect
