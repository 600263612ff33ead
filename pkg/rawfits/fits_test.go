package rawfits

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testMetadata() *CaptureMetadata {
	return &CaptureMetadata{
		Timestamp:   time.Date(2009, time.January, 5, 13, 7, 42, 0, time.UTC),
		Shutter:     "1/200.0",
		Aperture:    "5.6",
		ISO:         "100",
		FocalLength: "18.0",
		Filename:    "IMG_1204.CR2",
		Camera:      "Canon EOS 350D DIGITAL",
		Pattern:     "RGGB",
	}
}

func TestAssembleShapes(t *testing.T) {
	raw := sequentialGrid(6, 4)
	colour := NewPixelGrid(3, 2, 3, 8)

	tests := []struct {
		mode    OutputMode
		grid    *PixelGrid
		units   int
		filters []string
	}{
		{ModeCombinedRaw, raw, 1, []string{""}},
		{ModeSplitChannels, raw, 4, []string{"R", "G1", "G2", "B"}},
		{ModeInterpolated, colour, 1, []string{""}},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			c, err := Assemble(tt.mode, tt.grid, testMetadata())
			if err != nil {
				t.Fatalf("Assemble: %v", err)
			}
			if len(c.HDUs) != tt.units {
				t.Fatalf("got %d units, want %d", len(c.HDUs), tt.units)
			}
			for i, h := range c.HDUs {
				if got := h.Filter(); got != tt.filters[i] {
					t.Errorf("unit %d FILTER = %q, want %q", i, got, tt.filters[i])
				}
				if got := h.GetString(KeyObsTime); got != "2009-01-05 13:07:42" {
					t.Errorf("unit %d OBSTIME = %q", i, got)
				}
			}
			hasBayerComment := false
			for _, s := range c.Primary().Comments {
				if s == bayerComment {
					hasBayerComment = true
				}
			}
			if hasBayerComment != (tt.mode == ModeCombinedRaw) {
				t.Errorf("bayer comment present = %v in %s mode", hasBayerComment, tt.mode)
			}
		})
	}

	if _, err := Assemble(OutputMode(42), raw, testMetadata()); err == nil {
		t.Error("expected error for unknown mode")
	}
	if _, err := Assemble(ModeCombinedRaw, nil, testMetadata()); err == nil {
		t.Error("expected error for missing grid")
	}
	bad := testMetadata()
	bad.Pattern = "RRRR"
	if _, err := Assemble(ModeSplitChannels, raw, bad); err == nil {
		t.Error("expected error for invalid bayer pattern in split mode")
	}
}

func TestFitsRoundTrip(t *testing.T) {
	raw16 := sequentialGrid(6, 4)
	raw16.Pix[0] = 65535
	raw16.Pix[1] = 32768
	raw8 := NewPixelGrid(4, 2, 1, 8)
	for i := range raw8.Pix {
		raw8.Pix[i] = uint16(i * 30)
	}
	colour := NewPixelGrid(3, 2, 3, 8)
	for i := range colour.Pix {
		colour.Pix[i] = uint16(i * 10)
	}
	colour16 := NewPixelGrid(2, 2, 3, 16)
	for i := range colour16.Pix {
		colour16.Pix[i] = uint16(i * 5000)
	}

	tests := []struct {
		name string
		mode OutputMode
		grid *PixelGrid
	}{
		{"raw 16-bit", ModeCombinedRaw, raw16},
		{"raw 8-bit", ModeCombinedRaw, raw8},
		{"split 16-bit", ModeSplitChannels, raw16},
		{"interpolated 8-bit", ModeInterpolated, colour},
		{"interpolated 16-bit", ModeInterpolated, colour16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Assemble(tt.mode, tt.grid, testMetadata())
			if err != nil {
				t.Fatalf("Assemble: %v", err)
			}
			b, err := c.Bytes()
			if err != nil {
				t.Fatalf("Bytes: %v", err)
			}
			if len(b)%2880 != 0 {
				t.Errorf("FITS size %d is not a multiple of 2880", len(b))
			}
			if !bytes.Contains(b, []byte("EXPTIME is in seconds.")) {
				t.Error("unit comment missing from output")
			}

			back, err := ReadFits(bytes.NewReader(b))
			if err != nil {
				t.Fatalf("ReadFits: %v", err)
			}
			if back.Mode != tt.mode {
				t.Errorf("mode = %v, want %v", back.Mode, tt.mode)
			}
			if len(back.HDUs) != len(c.HDUs) {
				t.Fatalf("read %d units, wrote %d", len(back.HDUs), len(c.HDUs))
			}
			for i, h := range back.HDUs {
				want := c.HDUs[i]
				if h.Grid.Width != want.Grid.Width || h.Grid.Height != want.Grid.Height || h.Grid.Channels != want.Grid.Channels {
					t.Fatalf("unit %d shape %v, want %v", i, h.Grid, want.Grid)
				}
				for j := range want.Grid.Pix {
					if h.Grid.Pix[j] != want.Grid.Pix[j] {
						t.Fatalf("unit %d pix[%d] = %d, want %d", i, j, h.Grid.Pix[j], want.Grid.Pix[j])
					}
				}
				if len(h.Comments) != len(want.Comments) {
					t.Fatalf("unit %d comments = %q, want %q", i, h.Comments, want.Comments)
				}
				for j := range want.Comments {
					if h.Comments[j] != want.Comments[j] {
						t.Errorf("unit %d comment %d = %q, want %q", i, j, h.Comments[j], want.Comments[j])
					}
				}
				for _, key := range []string{KeyObsTime, KeyExpTime, KeyAperture, KeyISO, KeyFocal, KeyOrigin, KeyCamera, KeyBayer, KeyFilter} {
					if got, exp := h.GetString(key), want.GetString(key); got != exp {
						t.Errorf("unit %d %s = %q, want %q", i, key, got, exp)
					}
				}
			}
		})
	}
}

func TestHDUAccessors(t *testing.T) {
	c, err := Assemble(ModeCombinedRaw, sequentialGrid(2, 2), testMetadata())
	if err != nil {
		t.Fatal(err)
	}
	h := c.Primary()

	if exp, ok := h.ExposureTime(); !ok || math.Abs(exp-0.005) > 1e-12 {
		t.Errorf("ExposureTime = %v, %v", exp, ok)
	}
	if f, ok := h.GetDouble(KeyAperture); !ok || f != 5.6 {
		t.Errorf("aperture = %v, %v", f, ok)
	}
	if iso, ok := h.GetInt(KeyISO); !ok || iso != 100 {
		t.Errorf("ISO = %v, %v", iso, ok)
	}
	if focal, ok := h.GetInt(KeyFocal); !ok || focal != 18 {
		t.Errorf("focal = %v, %v", focal, ok)
	}
	if _, ok := h.GetInt(KeyAperture); ok {
		t.Error("aperture 5.6 is not an integer")
	}
	if ts, ok := h.GetDateTime(KeyObsTime); !ok || !ts.Equal(testMetadata().Timestamp) {
		t.Errorf("OBSTIME = %v, %v", ts, ok)
	}
	if h.CameraName() != "Canon EOS 350D DIGITAL" || h.BayerPattern() != "RGGB" {
		t.Errorf("camera %q pattern %q", h.CameraName(), h.BayerPattern())
	}
	if h.Card("missing") != nil || h.GetString("missing") != "" {
		t.Error("missing key should be empty")
	}
	if h.Card("obstime") == nil {
		t.Error("key lookup should be case-insensitive")
	}
}

func TestContainerUnit(t *testing.T) {
	c, err := Assemble(ModeSplitChannels, sequentialGrid(4, 4), testMetadata())
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range Filters {
		if h := c.Unit(f.String()); h == nil || h.Filter() != f.String() {
			t.Errorf("Unit(%s) = %v", f, h)
		}
	}
	if c.Unit("X") != nil {
		t.Error("Unit(X) should be nil")
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.fits")

	c, err := Assemble(ModeCombinedRaw, sequentialGrid(4, 4), testMetadata())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.WriteFile(path, false); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := c.WriteFile(path, false); !errors.Is(err, os.ErrExist) {
		t.Errorf("second write without overwrite: got %v, want ErrExist", err)
	}

	c2, err := Assemble(ModeSplitChannels, sequentialGrid(4, 4), testMetadata())
	if err != nil {
		t.Fatal(err)
	}
	if err := c2.WriteFile(path, true); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	back, err := ReadFitsFile(path)
	if err != nil {
		t.Fatalf("ReadFitsFile: %v", err)
	}
	if back.Mode != ModeSplitChannels || len(back.HDUs) != 4 {
		t.Errorf("read back %s with %d units", back.Mode, len(back.HDUs))
	}

	empty := &Container{}
	if err := empty.WriteFile(filepath.Join(dir, "empty.fits"), false); err == nil {
		t.Error("expected error writing an empty container")
	}
	if _, err := os.Stat(filepath.Join(dir, "empty.fits")); !errors.Is(err, os.ErrNotExist) {
		t.Error("failed write left a partial file behind")
	}
}
