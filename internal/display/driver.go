// Package display drives a 4-digit TM1637 seven-segment module and its
// software stand-ins.
//
// Every backend implements Driver. Display layers text, time and number
// helpers on top of any Driver.
package display

import (
	"errors"
	"fmt"

	"github.com/LISSConsulting/LISSTech.Kurokku/internal/segment"
)

// Brightness bounds accepted by SetBrightness.
const (
	MinBrightness     = 0
	MaxBrightness     = 7
	DefaultBrightness = 2
)

var (
	// ErrInvalidBrightness is returned for levels outside 0..7.
	ErrInvalidBrightness = errors.New("display: brightness must be between 0 and 7")
	// ErrInvalidFrame is returned for segment buffers that are not exactly
	// four bytes (or values outside 0..255).
	ErrInvalidFrame = errors.New("display: frame must hold exactly 4 segment bytes")
)

// Driver is the capability set shared by all backends.
type Driver interface {
	Name() string
	Brightness() int
	SetBrightness(level int) error
	Render(segments []byte, colon bool) error
	Clear() error
}

func checkBrightness(level int) error {
	if level < MinBrightness || level > MaxBrightness {
		return fmt.Errorf("%w: got %d", ErrInvalidBrightness, level)
	}
	return nil
}

func checkFrame(segments []byte) error {
	if len(segments) != segment.Digits {
		return fmt.Errorf("%w: got %d", ErrInvalidFrame, len(segments))
	}
	return nil
}

// Display wraps a Driver with content helpers.
type Display struct {
	Driver
}

// NewDisplay wraps d.
func NewDisplay(d Driver) *Display {
	return &Display{Driver: d}
}

// ShowText renders the first four characters of s, left-aligned.
func (d *Display) ShowText(s string) error {
	frame := segment.EncodeText(s)
	return d.Render(frame[:], false)
}

// ShowTime renders HH:MM with the colon on or off.
func (d *Display) ShowTime(hour, minute int, colon bool) error {
	frame := segment.EncodeTime(hour, minute)
	return d.Render(frame[:], colon)
}

// ShowInt renders n right-aligned.
func (d *Display) ShowInt(n int) error {
	frame := segment.EncodeInt(n)
	return d.Render(frame[:], false)
}

// ShowFloat renders f right-aligned with one decimal place.
func (d *Display) ShowFloat(f float64) error {
	frame := segment.EncodeFloat(f)
	return d.Render(frame[:], false)
}

// ShowSegments renders raw patterns as found in animation frames.
func (d *Display) ShowSegments(segments []int, colon bool) error {
	if len(segments) != segment.Digits {
		return fmt.Errorf("%w: got %d", ErrInvalidFrame, len(segments))
	}
	frame := make([]byte, len(segments))
	for i, v := range segments {
		if v < 0 || v > 0xFF {
			return fmt.Errorf("%w: segment %d out of range (%d)", ErrInvalidFrame, i, v)
		}
		frame[i] = byte(v)
	}
	return d.Render(frame, colon)
}
