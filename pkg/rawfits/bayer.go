package rawfits

import (
	"fmt"
	"strings"
)

// BayerPattern lists the colours of a 2×2 filter tile in row-major order,
// e.g. "RGGB" is
//
//	R G
//	G B
type BayerPattern string

// Filter identifies one physical position of the tile.
type Filter int

const (
	FilterR Filter = iota
	FilterG1
	FilterG2
	FilterB
)

// Filters is the unit order of a split container.
var Filters = [4]Filter{FilterR, FilterG1, FilterG2, FilterB}

func (f Filter) String() string {
	switch f {
	case FilterR:
		return "R"
	case FilterG1:
		return "G1"
	case FilterG2:
		return "G2"
	case FilterB:
		return "B"
	default:
		return "?"
	}
}

// Arrangement reshapes the pattern into its 2×2 tile.
func (p BayerPattern) Arrangement() [2][2]byte {
	var tile [2][2]byte
	for i := 0; i < 4 && i < len(p); i++ {
		tile[i/2][i%2] = p[i]
	}
	return tile
}

// Validate checks for exactly one R, two G and one B.
func (p BayerPattern) Validate() error {
	if len(p) != 4 {
		return fmt.Errorf("bayer pattern %q: want 4 characters", string(p))
	}
	s := strings.ToUpper(string(p))
	if strings.Count(s, "R") != 1 || strings.Count(s, "G") != 2 || strings.Count(s, "B") != 1 {
		return fmt.Errorf("bayer pattern %q: want one R, two G and one B", string(p))
	}
	return nil
}

// Offset returns the (row, col) of f within the tile. G1 is the first G in
// row-major order and G2 the second.
func (p BayerPattern) Offset(f Filter) (row, col int, err error) {
	if err := p.Validate(); err != nil {
		return 0, 0, err
	}
	want := byte('R')
	nth := 0
	switch f {
	case FilterR:
	case FilterG1:
		want = 'G'
	case FilterG2:
		want, nth = 'G', 1
	case FilterB:
		want = 'B'
	default:
		return 0, 0, fmt.Errorf("unknown filter %d", int(f))
	}
	s := strings.ToUpper(string(p))
	for i := 0; i < 4; i++ {
		if s[i] != want {
			continue
		}
		if nth == 0 {
			return i / 2, i % 2, nil
		}
		nth--
	}
	return 0, 0, fmt.Errorf("bayer pattern %q has no %s", string(p), f)
}

// colourIndex maps the tile position of (x, y) to 0=R, 1=G, 2=B.
func (p BayerPattern) colourIndex(x, y int) int {
	switch p[(y%2)*2+x%2] {
	case 'R', 'r':
		return 0
	case 'B', 'b':
		return 2
	default:
		return 1
	}
}

// ChannelSet holds one sub-grid per filter position.
type ChannelSet struct {
	Pattern  BayerPattern
	Channels [4]*PixelGrid
}

// Get returns the sub-grid for f.
func (cs *ChannelSet) Get(f Filter) *PixelGrid {
	return cs.Channels[f]
}

// SplitChannels copies out grid[row::2, col::2] for every filter position.
// Odd dimensions give the leading positions one extra row or column.
func SplitChannels(grid *PixelGrid, pattern BayerPattern) (*ChannelSet, error) {
	if grid.Channels != 1 {
		return nil, fmt.Errorf("splitting channels: want a single-channel raw grid, got %d channels", grid.Channels)
	}
	cs := &ChannelSet{Pattern: pattern}
	for _, f := range Filters {
		row, col, err := pattern.Offset(f)
		if err != nil {
			return nil, fmt.Errorf("splitting channels: %w", err)
		}
		w := (grid.Width - col + 1) / 2
		h := (grid.Height - row + 1) / 2
		sub := NewPixelGrid(w, h, 1, grid.BitDepth)
		for y := 0; y < h; y++ {
			src := (row+2*y)*grid.Width + col
			dst := y * w
			for x := 0; x < w; x++ {
				sub.Pix[dst+x] = grid.Pix[src+2*x]
			}
		}
		cs.Channels[f] = sub
	}
	return cs, nil
}

// MergeChannels interleaves a ChannelSet back into the full sensor grid.
func MergeChannels(cs *ChannelSet) (*PixelGrid, error) {
	width, height := 0, 0
	for _, f := range Filters {
		row, col, err := cs.Pattern.Offset(f)
		if err != nil {
			return nil, fmt.Errorf("merging channels: %w", err)
		}
		sub := cs.Channels[f]
		if sub == nil {
			return nil, fmt.Errorf("merging channels: missing %s", f)
		}
		if w := col + 2*sub.Width - 1; w > width {
			width = w
		}
		if h := row + 2*sub.Height - 1; h > height {
			height = h
		}
	}
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}

	grid := NewPixelGrid(width, height, 1, cs.Channels[FilterR].BitDepth)
	for _, f := range Filters {
		row, col, _ := cs.Pattern.Offset(f)
		sub := cs.Channels[f]
		if sub.BitDepth > grid.BitDepth {
			grid.BitDepth = sub.BitDepth
		}
		for y := 0; y < sub.Height; y++ {
			for x := 0; x < sub.Width; x++ {
				grid.Pix[(row+2*y)*width+col+2*x] = sub.Pix[y*sub.Width+x]
			}
		}
	}
	return grid, nil
}

// Debayer performs bilinear interpolation of a raw Bayer grid into RGB.
// Each missing colour is the mean of the same-colour samples in the 3×3
// neighbourhood; samples outside the image are skipped.
//
// Only used for quick-look rendering. FITS output never interpolates itself.
func Debayer(grid *PixelGrid, pattern BayerPattern) (*PixelGrid, error) {
	if grid.Channels != 1 {
		return nil, fmt.Errorf("debayer: want a single-channel raw grid, got %d channels", grid.Channels)
	}
	if err := pattern.Validate(); err != nil {
		return nil, fmt.Errorf("debayer: %w", err)
	}

	width, height := grid.Width, grid.Height
	out := NewPixelGrid(width, height, 3, grid.BitDepth)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var sum [3]uint32
			var n [3]uint32
			own := pattern.colourIndex(x, y)
			for dy := -1; dy <= 1; dy++ {
				yy := y + dy
				if yy < 0 || yy >= height {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					xx := x + dx
					if xx < 0 || xx >= width {
						continue
					}
					c := pattern.colourIndex(xx, yy)
					if c == own && (dx != 0 || dy != 0) {
						continue
					}
					sum[c] += uint32(grid.Pix[yy*width+xx])
					n[c]++
				}
			}
			for c := 0; c < 3; c++ {
				if n[c] > 0 {
					out.Pix[(y*width+x)*3+c] = uint16(sum[c] / n[c])
				}
			}
		}
	}
	return out, nil
}
