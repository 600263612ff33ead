package rawfits

import (
	"fmt"
	"strings"
)

// PixelGrid is a row-major image with interleaved channels.
// Sample (x, y, c) lives at Pix[(y*Width+x)*Channels+c].
type PixelGrid struct {
	Width    int
	Height   int
	Channels int
	BitDepth int
	Pix      []uint16
}

// NewPixelGrid allocates a zeroed grid.
func NewPixelGrid(width, height, channels, bitDepth int) *PixelGrid {
	return &PixelGrid{
		Width:    width,
		Height:   height,
		Channels: channels,
		BitDepth: bitDepth,
		Pix:      make([]uint16, width*height*channels),
	}
}

// At returns the sample at column x, row y, channel c.
func (g *PixelGrid) At(x, y, c int) uint16 {
	return g.Pix[(y*g.Width+x)*g.Channels+c]
}

// Set stores v at column x, row y, channel c.
func (g *PixelGrid) Set(x, y, c int, v uint16) {
	g.Pix[(y*g.Width+x)*g.Channels+c] = v
}

// Plane copies channel c out as a single-channel grid.
func (g *PixelGrid) Plane(c int) *PixelGrid {
	out := NewPixelGrid(g.Width, g.Height, 1, g.BitDepth)
	n := g.Width * g.Height
	for i := 0; i < n; i++ {
		out.Pix[i] = g.Pix[i*g.Channels+c]
	}
	return out
}

// MaxValue is the largest sample value representable at the grid's bit depth.
func (g *PixelGrid) MaxValue() uint16 {
	if g.BitDepth <= 8 {
		return 255
	}
	return 65535
}

func (g *PixelGrid) String() string {
	return fmt.Sprintf("%dx%dx%d@%dbit", g.Width, g.Height, g.Channels, g.BitDepth)
}

// OutputMode selects the shape of the FITS container.
type OutputMode int

const (
	// ModeCombinedRaw stores the whole un-interpolated sensor grid in one unit.
	ModeCombinedRaw OutputMode = iota
	// ModeSplitChannels stores one unit per Bayer filter position.
	ModeSplitChannels
	// ModeInterpolated stores the decoder's colour-interpolated image in one unit.
	ModeInterpolated
)

func (m OutputMode) String() string {
	switch m {
	case ModeCombinedRaw:
		return "raw"
	case ModeSplitChannels:
		return "split"
	case ModeInterpolated:
		return "interpolated"
	default:
		return "unknown"
	}
}

// DecodeMode reports which decoder output the mode needs.
func (m OutputMode) DecodeMode() DecodeMode {
	if m == ModeInterpolated {
		return DecodeInterpolated
	}
	return DecodeRaw
}

// ParseOutputMode accepts the names printed by OutputMode.String.
func ParseOutputMode(s string) (OutputMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "raw", "combined":
		return ModeCombinedRaw, nil
	case "split", "channels":
		return ModeSplitChannels, nil
	case "interpolated", "interpolate", "color", "colour":
		return ModeInterpolated, nil
	default:
		return ModeCombinedRaw, fmt.Errorf("unknown output mode %q (want raw, split or interpolated)", s)
	}
}

// ModeFromFlags maps the legacy boolean pair onto an OutputMode.
// Interpolation wins over splitting; splitting an interpolated image is not
// a supported combination.
func ModeFromFlags(splitChannels, interpolate bool) OutputMode {
	switch {
	case interpolate:
		return ModeInterpolated
	case splitChannels:
		return ModeSplitChannels
	default:
		return ModeCombinedRaw
	}
}
