// ABOUTME: Tests for audio types
// ABOUTME: Tests format layout helpers and validation
package audio

import (
	"errors"
	"testing"
)

func TestNewFloat32Format(t *testing.T) {
	f := NewFloat32Format(48000, 2)

	if f.Codec != CodecFloat32 {
		t.Errorf("expected codec %q, got %q", CodecFloat32, f.Codec)
	}
	if f.BitDepth != 32 {
		t.Errorf("expected bit depth 32, got %d", f.BitDepth)
	}
	if err := f.Validate(); err != nil {
		t.Errorf("expected valid format, got %v", err)
	}
}

func TestFormatLayout(t *testing.T) {
	tests := []struct {
		name        string
		format      Format
		blockAlign  int
		bytesPerSec int
	}{
		{"mono 44.1k", NewFloat32Format(44100, 1), 4, 176400},
		{"stereo 48k", NewFloat32Format(48000, 2), 8, 384000},
		{"5.1 48k", NewFloat32Format(48000, 6), 24, 1152000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.format.BytesPerSample(); got != 4 {
				t.Errorf("expected 4 bytes per sample, got %d", got)
			}
			if got := tt.format.BlockAlign(); got != tt.blockAlign {
				t.Errorf("expected block align %d, got %d", tt.blockAlign, got)
			}
			if got := tt.format.BytesPerSecond(); got != tt.bytesPerSec {
				t.Errorf("expected %d bytes/s, got %d", tt.bytesPerSec, got)
			}
		})
	}
}

func TestFormatValidate(t *testing.T) {
	tests := []struct {
		name   string
		format Format
	}{
		{"zero sample rate", NewFloat32Format(0, 2)},
		{"negative sample rate", NewFloat32Format(-1, 2)},
		{"zero channels", NewFloat32Format(48000, 0)},
		{"16-bit", Format{Codec: CodecFloat32, SampleRate: 48000, Channels: 2, BitDepth: 16}},
		{"wrong codec", Format{Codec: "opus", SampleRate: 48000, Channels: 2, BitDepth: 32}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.format.Validate()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, ErrInvalidFormat) {
				t.Errorf("expected ErrInvalidFormat, got %v", err)
			}
		})
	}
}

func TestFormatString(t *testing.T) {
	f := NewFloat32Format(48000, 2)
	if got := f.String(); got != "48000Hz 2ch f32le" {
		t.Errorf("unexpected string: %q", got)
	}

	// Codec is implied when left empty
	f.Codec = ""
	if got := f.String(); got != "48000Hz 2ch f32le" {
		t.Errorf("unexpected string for empty codec: %q", got)
	}
}
