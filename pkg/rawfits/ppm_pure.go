//go:build purego || js

package rawfits

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/lmittmann/ppm"
)

// readPPM loads the decoder's interpolated output without cgo.
func readPPM(path string) (*PixelGrid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	img, err := ppm.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	bitDepth := 16
	switch img.(type) {
	case *image.RGBA, *image.NRGBA, *image.Gray:
		bitDepth = 8
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	grid := NewPixelGrid(w, h, 3, bitDepth)
	shift := uint(16 - bitDepth)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA64Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.RGBA64)
			i := (y*w + x) * 3
			grid.Pix[i] = c.R >> shift
			grid.Pix[i+1] = c.G >> shift
			grid.Pix[i+2] = c.B >> shift
		}
	}
	return grid, nil
}
