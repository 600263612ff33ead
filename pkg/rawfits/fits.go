package rawfits

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/astrogo/fitsio"
)

// Header card names written for every image unit.
const (
	KeyObsTime  = "OBSTIME"
	KeyExpTime  = "EXPTIME"
	KeyAperture = "APERTUR"
	KeyISO      = "ISO"
	KeyFocal    = "FOCAL"
	KeyOrigin   = "ORIGIN"
	KeyCamera   = "CAMERA"
	KeyBayer    = "BAYERPA"
	KeyFilter   = "FILTER"
)

var unitComments = []string{
	"EXPTIME is in seconds.",
	"APERTUR is the ratio as in f/APERTUR",
	"FOCAL is in mm",
}

const bayerComment = "BAYERPA is the Bayer filter pattern"

// unsignedZero is the BZERO offset storing uint16 samples in BITPIX 16.
const unsignedZero = 32768

// HDU is one image unit: pixels, value cards and free-text comments.
type HDU struct {
	Grid     *PixelGrid
	Cards    []fitsio.Card
	Comments []string
}

// Container is an ordered list of image units; the first is the primary.
type Container struct {
	Mode OutputMode
	HDUs []*HDU
}

// Primary returns the first unit, or nil for an empty container.
func (c *Container) Primary() *HDU {
	if len(c.HDUs) == 0 {
		return nil
	}
	return c.HDUs[0]
}

// Unit returns the unit whose FILTER card equals filter.
func (c *Container) Unit(filter string) *HDU {
	for _, h := range c.HDUs {
		if h.GetString(KeyFilter) == filter {
			return h
		}
	}
	return nil
}

// Assemble builds the container for mode. grid is the decoder output: the
// raw sensor grid for ModeCombinedRaw and ModeSplitChannels, the colour image
// for ModeInterpolated.
func Assemble(mode OutputMode, grid *PixelGrid, meta *CaptureMetadata) (*Container, error) {
	if grid == nil || meta == nil {
		return nil, errors.New("assembling FITS: missing pixel data or metadata")
	}
	c := &Container{Mode: mode}

	switch mode {
	case ModeInterpolated:
		c.HDUs = append(c.HDUs, newHDU(grid, meta))

	case ModeSplitChannels:
		cs, err := SplitChannels(grid, meta.Pattern)
		if err != nil {
			return nil, err
		}
		for _, f := range Filters {
			h := newHDU(cs.Get(f), meta)
			h.Cards = append(h.Cards, fitsio.Card{Name: KeyFilter, Value: f.String()})
			c.HDUs = append(c.HDUs, h)
		}

	case ModeCombinedRaw:
		h := newHDU(grid, meta)
		h.Comments = append(h.Comments, bayerComment)
		c.HDUs = append(c.HDUs, h)

	default:
		return nil, fmt.Errorf("assembling FITS: unknown output mode %d", int(mode))
	}
	return c, nil
}

func newHDU(grid *PixelGrid, meta *CaptureMetadata) *HDU {
	h := &HDU{
		Grid: grid,
		Cards: []fitsio.Card{
			{Name: KeyObsTime, Value: meta.TimestampString()},
			{Name: KeyExpTime, Value: meta.Shutter},
			{Name: KeyAperture, Value: meta.Aperture},
			{Name: KeyISO, Value: meta.ISO},
			{Name: KeyFocal, Value: meta.FocalLength},
			{Name: KeyOrigin, Value: meta.Filename},
			{Name: KeyCamera, Value: meta.Camera},
			{Name: KeyBayer, Value: string(meta.Pattern)},
		},
	}
	h.Comments = append(h.Comments, unitComments...)
	return h
}

// Write serializes the container as FITS.
func (c *Container) Write(w io.Writer) error {
	if len(c.HDUs) == 0 {
		return errors.New("writing FITS: empty container")
	}
	f, err := fitsio.Create(w)
	if err != nil {
		return fmt.Errorf("writing FITS: %w", err)
	}
	for i, h := range c.HDUs {
		if err := h.write(f); err != nil {
			f.Close()
			return fmt.Errorf("writing FITS unit %d: %w", i, err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing FITS: %w", err)
	}
	return nil
}

// WriteFile writes the container to path. An existing file is an error
// unless overwrite is set.
func (c *Container) WriteFile(path string, overwrite bool) error {
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	out, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return fmt.Errorf("creating FITS file: %w", err)
	}
	if err := c.Write(out); err != nil {
		out.Close()
		os.Remove(path)
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing FITS file: %w", err)
	}
	return nil
}

// Bytes returns the serialized container.
func (c *Container) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (h *HDU) axes() []int {
	g := h.Grid
	if g.Channels > 1 {
		return []int{g.Width, g.Height, g.Channels}
	}
	return []int{g.Width, g.Height}
}

func (h *HDU) write(f *fitsio.File) error {
	g := h.Grid
	bitpix := 16
	if g.BitDepth <= 8 {
		bitpix = 8
	}
	img := fitsio.NewImage(bitpix, h.axes())
	defer img.Close()

	cards := make([]fitsio.Card, 0, len(h.Cards)+len(h.Comments)+2)
	if bitpix == 16 {
		cards = append(cards,
			fitsio.Card{Name: "BZERO", Value: unsignedZero, Comment: "unsigned 16-bit samples"},
			fitsio.Card{Name: "BSCALE", Value: 1},
		)
	}
	cards = append(cards, h.Cards...)
	for _, text := range h.Comments {
		cards = append(cards, fitsio.Card{Name: "COMMENT", Comment: text})
	}
	if err := img.Header().Append(cards...); err != nil {
		return err
	}

	// FITS stores each channel as a separate plane.
	plane := g.Width * g.Height
	if bitpix == 8 {
		data := make([]byte, len(g.Pix))
		for c := 0; c < g.Channels; c++ {
			for i := 0; i < plane; i++ {
				data[c*plane+i] = byte(g.Pix[i*g.Channels+c])
			}
		}
		if err := img.Write(data); err != nil {
			return err
		}
	} else {
		data := make([]int16, len(g.Pix))
		for c := 0; c < g.Channels; c++ {
			for i := 0; i < plane; i++ {
				data[c*plane+i] = int16(g.Pix[i*g.Channels+c] - unsignedZero)
			}
		}
		if err := img.Write(data); err != nil {
			return err
		}
	}
	return f.Write(img)
}

// Card returns the value card named key, or nil.
func (h *HDU) Card(key string) *fitsio.Card {
	key = strings.ToUpper(key)
	for i := range h.Cards {
		if h.Cards[i].Name == key {
			return &h.Cards[i]
		}
	}
	return nil
}

func (h *HDU) GetString(key string) string {
	card := h.Card(key)
	if card == nil || card.Value == nil {
		return ""
	}
	if s, ok := card.Value.(string); ok {
		// FITS pads string values with trailing blanks.
		return strings.TrimRight(s, " ")
	}
	return fmt.Sprint(card.Value)
}

func (h *HDU) GetDouble(key string) (float64, bool) {
	card := h.Card(key)
	if card == nil {
		return 0, false
	}
	return cardFloat(card.Value)
}

func (h *HDU) GetInt(key string) (int, bool) {
	v, ok := h.GetDouble(key)
	if !ok || v != math.Trunc(v) {
		return 0, false
	}
	return int(v), true
}

func (h *HDU) GetDateTime(key string) (time.Time, bool) {
	s := strings.TrimSpace(h.GetString(key))
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (h *HDU) Filter() string       { return h.GetString(KeyFilter) }
func (h *HDU) CameraName() string   { return h.GetString(KeyCamera) }
func (h *HDU) BayerPattern() string { return h.GetString(KeyBayer) }

// ExposureTime parses EXPTIME, accepting the fractional "1/200.0" form.
func (h *HDU) ExposureTime() (float64, bool) {
	s := strings.TrimSpace(h.GetString(KeyExpTime))
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseFloat(strings.TrimSpace(num), 64)
		d, err2 := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0, false
		}
		return n / d, true
	}
	return h.GetDouble(KeyExpTime)
}

func cardFloat(v interface{}) (float64, bool) {
	switch v := v.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint8:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case string:
		d, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return d, true
	default:
		return 0, false
	}
}

// structuralKeys are written by the FITS encoder itself and are not kept as
// value cards when reading.
var structuralKeys = map[string]bool{
	"SIMPLE": true, "XTENSION": true, "BITPIX": true, "NAXIS": true,
	"EXTEND": true, "PCOUNT": true, "GCOUNT": true, "END": true,
	"BZERO": true, "BSCALE": true, "COMMENT": true, "HISTORY": true, "": true,
}

// ReadFitsFile reads a FITS file written by Container.WriteFile.
func ReadFitsFile(path string) (*Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening FITS file: %w", err)
	}
	defer f.Close()
	return ReadFits(f)
}

// ReadFits decodes every image unit of a FITS stream. Samples are brought
// back to unsigned values using BZERO/BSCALE.
func ReadFits(r io.Reader) (*Container, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, fmt.Errorf("reading FITS: %w", err)
	}
	defer f.Close()

	c := &Container{}
	for i, hdu := range f.HDUs() {
		img, ok := hdu.(fitsio.Image)
		if !ok {
			continue
		}
		h, err := readHDU(img)
		if err != nil {
			return nil, fmt.Errorf("reading FITS unit %d: %w", i, err)
		}
		c.HDUs = append(c.HDUs, h)
	}
	if len(c.HDUs) == 0 {
		return nil, errors.New("reading FITS: no image units")
	}

	switch {
	case len(c.HDUs) == 4 && c.HDUs[0].Filter() != "":
		c.Mode = ModeSplitChannels
	case c.HDUs[0].Grid.Channels > 1:
		c.Mode = ModeInterpolated
	default:
		c.Mode = ModeCombinedRaw
	}
	return c, nil
}

func readHDU(img fitsio.Image) (*HDU, error) {
	hdr := img.Header()
	h := &HDU{}

	bzero, bscale := 0.0, 1.0
	// Keys lists every card, so repeated COMMENT cards are visited one by one.
	for i, key := range hdr.Keys() {
		card := hdr.Card(i)
		if card == nil {
			continue
		}
		switch key {
		case "BZERO":
			if v, ok := cardFloat(card.Value); ok {
				bzero = v
			}
		case "BSCALE":
			if v, ok := cardFloat(card.Value); ok {
				bscale = v
			}
		case "COMMENT":
			if text := commentText(card); text != "" {
				h.Comments = append(h.Comments, text)
			}
		}
		if structuralKeys[key] || strings.HasPrefix(key, "NAXIS") {
			continue
		}
		h.Cards = append(h.Cards, *card)
	}

	axes := hdr.Axes()
	if len(axes) < 2 || len(axes) > 3 || axes[0] == 0 || axes[1] == 0 {
		return nil, fmt.Errorf("invalid FITS: NAXIS=%d, axes=%v", len(axes), axes)
	}
	width, height, channels := axes[0], axes[1], 1
	if len(axes) == 3 {
		channels = axes[2]
	}
	plane := width * height
	n := plane * channels

	physical := make([]float64, n)
	bitpix := hdr.Bitpix()
	switch bitpix {
	case 8:
		raw := make([]byte, n)
		if err := img.Read(&raw); err != nil {
			return nil, fmt.Errorf("reading 8-bit pixel data: %w", err)
		}
		for i, v := range raw {
			physical[i] = float64(v)
		}
	case 16:
		raw := make([]int16, n)
		if err := img.Read(&raw); err != nil {
			return nil, fmt.Errorf("reading 16-bit pixel data: %w", err)
		}
		for i, v := range raw {
			physical[i] = float64(v)
		}
	case 32:
		raw := make([]int32, n)
		if err := img.Read(&raw); err != nil {
			return nil, fmt.Errorf("reading 32-bit pixel data: %w", err)
		}
		for i, v := range raw {
			physical[i] = float64(v)
		}
	case -32:
		raw := make([]float32, n)
		if err := img.Read(&raw); err != nil {
			return nil, fmt.Errorf("reading -32 float pixel data: %w", err)
		}
		for i, v := range raw {
			physical[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("unsupported BITPIX: %d", bitpix)
	}

	bitDepth := 16
	if bitpix == 8 {
		bitDepth = 8
	}
	grid := NewPixelGrid(width, height, channels, bitDepth)
	for c := 0; c < channels; c++ {
		for i := 0; i < plane; i++ {
			v := physical[c*plane+i]*bscale + bzero
			grid.Pix[i*channels+c] = uint16(clampFloat64(math.Round(v), 0, 65535))
		}
	}
	h.Grid = grid
	return h, nil
}

// commentText returns the free text of a COMMENT card.
func commentText(card *fitsio.Card) string {
	text := card.Comment
	if text == "" && card.Value != nil {
		text = fmt.Sprint(card.Value)
	}
	return strings.TrimSpace(text)
}

func clampFloat64(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
