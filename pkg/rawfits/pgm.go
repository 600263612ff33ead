package rawfits

import (
	"encoding/binary"
	"fmt"
	"os"
	"regexp"
	"strconv"
)

// pgmHeader matches the binary PGM header: magic, width, height and maxval,
// each followed by whitespace, with '#' comment lines allowed between tokens.
// See http://netpbm.sourceforge.net/doc/pgm.html.
var pgmHeader = regexp.MustCompile(
	`^(P5\s(?:\s*#.*[\r\n])*` +
		`(\d+)\s(?:\s*#.*[\r\n])*` +
		`(\d+)\s(?:\s*#.*[\r\n])*` +
		`(\d+)\s(?:\s*#.*[\r\n]\s)*)`)

// ReadPGM reads a raw (P5) PGM file. Two-byte samples are decoded with
// order, big-endian when order is nil.
func ReadPGM(path string, order binary.ByteOrder) (*PixelGrid, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading PGM: %w", err)
	}
	grid, err := DecodePGM(buf, order)
	if err != nil {
		if fe, ok := err.(*FormatError); ok {
			fe.Path = path
		}
		return nil, err
	}
	return grid, nil
}

// DecodePGM parses a raw PGM held in memory into a single-channel grid of
// shape (height, width).
func DecodePGM(buf []byte, order binary.ByteOrder) (*PixelGrid, error) {
	if order == nil {
		order = binary.BigEndian
	}
	m := pgmHeader.FindSubmatch(buf)
	if m == nil {
		return nil, &FormatError{Reason: "header does not match P5 <width> <height> <maxval>"}
	}
	width, err := strconv.Atoi(string(m[2]))
	if err != nil || width <= 0 {
		return nil, &FormatError{Reason: fmt.Sprintf("bad width %q", m[2])}
	}
	height, err := strconv.Atoi(string(m[3]))
	if err != nil || height <= 0 {
		return nil, &FormatError{Reason: fmt.Sprintf("bad height %q", m[3])}
	}
	maxval, err := strconv.Atoi(string(m[4]))
	if err != nil || maxval <= 0 || maxval > 65535 {
		return nil, &FormatError{Reason: fmt.Sprintf("bad maxval %q", m[4])}
	}

	bytesPerSample := 1
	bitDepth := 8
	if maxval >= 256 {
		bytesPerSample = 2
		bitDepth = 16
	}

	data := buf[len(m[1]):]
	// Compare by division so oversized headers cannot overflow width*height.
	if len(data)/bytesPerSample/height < width {
		return nil, &FormatError{Reason: fmt.Sprintf("expected %dx%d samples, have %d bytes", width, height, len(data))}
	}
	count := width * height

	grid := NewPixelGrid(width, height, 1, bitDepth)
	if bytesPerSample == 1 {
		for i := 0; i < count; i++ {
			grid.Pix[i] = uint16(data[i])
		}
	} else {
		for i := 0; i < count; i++ {
			grid.Pix[i] = order.Uint16(data[i*2:])
		}
	}
	return grid, nil
}
