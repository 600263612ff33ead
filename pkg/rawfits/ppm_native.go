//go:build !purego && !js

package rawfits

import (
	"fmt"

	"gocv.io/x/gocv"
)

// readPPM loads the decoder's interpolated output through OpenCV.
func readPPM(path string) (*PixelGrid, error) {
	src := gocv.IMRead(path, gocv.IMReadUnchanged)
	if src.Empty() {
		return nil, fmt.Errorf("could not load image: %s", path)
	}
	defer src.Close()

	if src.Channels() != 3 {
		return nil, fmt.Errorf("%s: want 3 colour channels, got %d", path, src.Channels())
	}

	// OpenCV keeps colour images in BGR order.
	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(src, &rgb, gocv.ColorBGRToRGB)

	w, h := rgb.Cols(), rgb.Rows()
	n := w * h * 3

	switch rgb.Type() {
	case gocv.MatTypeCV8UC3:
		data, err := rgb.DataPtrUint8()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		grid := NewPixelGrid(w, h, 3, 8)
		for i := 0; i < n; i++ {
			grid.Pix[i] = uint16(data[i])
		}
		return grid, nil
	case gocv.MatTypeCV16UC3:
		data, err := rgb.DataPtrUint16()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		grid := NewPixelGrid(w, h, 3, 16)
		copy(grid.Pix, data[:n])
		return grid, nil
	default:
		return nil, fmt.Errorf("%s: unsupported pixel type %v", path, rgb.Type())
	}
}
