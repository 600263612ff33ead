package rawfits

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DefaultPreviewWidth is the quick-look width in pixels.
const DefaultPreviewWidth = 800

// WritePreview renders a JPEG quick-look of the container to outputPath.
func WritePreview(c *Container, width int, outputPath string) error {
	img, err := RenderPreview(c, width)
	if err != nil {
		return err
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create preview file: %w", err)
	}
	defer f.Close()

	return jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
}

// RenderPreviewBytes returns the quick-look as JPEG bytes.
func RenderPreviewBytes(c *Container, width int) ([]byte, error) {
	img, err := RenderPreview(c, width)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderPreview draws the image scaled to width pixels with a caption of the
// capture parameters underneath. Raw and split containers are debayered for
// display.
func RenderPreview(c *Container, width int) (*image.RGBA, error) {
	primary := c.Primary()
	if primary == nil {
		return nil, errors.New("no image units to preview")
	}
	if width <= 0 {
		width = DefaultPreviewWidth
	}

	rgb, err := previewGrid(c)
	if err != nil {
		return nil, err
	}
	src := stretchToRGBA(rgb)

	scale := float64(width) / float64(rgb.Width)
	imgW := width
	imgH := int(math.Round(float64(rgb.Height) * scale))
	if imgH < 1 {
		imgH = 1
	}

	const captionH = 44
	totalH := imgH + captionH
	img := image.NewRGBA(image.Rect(0, 0, imgW, totalH))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{0, 0, 0, 255}), image.Point{}, draw.Src)
	draw.ApproxBiLinear.Scale(img, image.Rect(0, 0, imgW, imgH), src, src.Bounds(), draw.Src, nil)

	face := basicfont.Face7x13
	textColor := color.RGBA{220, 220, 220, 255}
	line1 := fmt.Sprintf("%s  ISO %s  f/%s  %ss  %smm",
		primary.CameraName(), primary.GetString(KeyISO), primary.GetString(KeyAperture),
		primary.GetString(KeyExpTime), primary.GetString(KeyFocal))
	line2 := fmt.Sprintf("%s  %s  %s  %dx%d",
		primary.GetString(KeyObsTime), c.Mode, primary.BayerPattern(), rgb.Width, rgb.Height)
	drawText(img, face, line1, 10, imgH+16, textColor)
	drawText(img, face, line2, 10, imgH+34, textColor)

	return img, nil
}

// previewGrid returns a three-channel grid for display.
func previewGrid(c *Container) (*PixelGrid, error) {
	primary := c.Primary()
	switch {
	case primary.Grid.Channels == 3:
		return primary.Grid, nil
	case c.Mode == ModeSplitChannels:
		cs := &ChannelSet{Pattern: BayerPattern(primary.BayerPattern())}
		for i, f := range Filters {
			if i >= len(c.HDUs) {
				return nil, fmt.Errorf("preview: missing %s unit", f)
			}
			cs.Channels[f] = c.HDUs[i].Grid
		}
		raw, err := MergeChannels(cs)
		if err != nil {
			return nil, fmt.Errorf("preview: %w", err)
		}
		return Debayer(raw, cs.Pattern)
	default:
		return Debayer(primary.Grid, BayerPattern(primary.BayerPattern()))
	}
}

// stretchToRGBA maps each channel linearly from its minimum to its 99.9th
// percentile and applies a 1/2.2 display gamma.
func stretchToRGBA(g *PixelGrid) *image.RGBA {
	var lut [3][]uint8
	for c := 0; c < 3; c++ {
		lut[c] = stretchTable(SampleHistogram(g, c), g.Width*g.Height)
	}
	img := image.NewRGBA(image.Rect(0, 0, g.Width, g.Height))
	n := g.Width * g.Height
	for i := 0; i < n; i++ {
		img.Pix[i*4] = lut[0][g.Pix[i*3]]
		img.Pix[i*4+1] = lut[1][g.Pix[i*3+1]]
		img.Pix[i*4+2] = lut[2][g.Pix[i*3+2]]
		img.Pix[i*4+3] = 255
	}
	return img
}

func stretchTable(hist []uint64, count int) []uint8 {
	lo, hi := 0, len(hist)-1
	for lo < hi && hist[lo] == 0 {
		lo++
	}
	target := uint64(math.Ceil(float64(count) * 0.999))
	var seen uint64
	for v, n := range hist {
		seen += n
		if seen >= target {
			hi = v
			break
		}
	}
	if hi <= lo {
		hi = lo + 1
	}

	table := make([]uint8, len(hist))
	for v := range table {
		t := (float64(v) - float64(lo)) / float64(hi-lo)
		t = clampFloat64(t, 0, 1)
		table[v] = uint8(math.Round(255 * math.Pow(t, 1/2.2)))
	}
	return table
}

// drawText draws a string at (x, y) using the given font face.
func drawText(img *image.RGBA, face font.Face, s string, x, y int, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}
