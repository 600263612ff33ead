package rawfits

import (
	"context"
	"fmt"
	"strings"
)

// commandDescriber is implemented by decoders that run an external command.
type commandDescriber interface {
	DecodeCommand(rawPath string, mode DecodeMode) []string
	MetadataCommand(rawPath string) []string
}

// Converter turns raw camera files into FITS containers. It holds no
// per-conversion state; distinct raw files may be converted concurrently.
type Converter struct {
	Decoder Decoder
	Parser  MetadataParser
	Logger  *Logger
}

// NewConverter pairs dec with the dcraw report parser. A nil dec runs dcraw
// from PATH.
func NewConverter(dec Decoder, logger *Logger) *Converter {
	if dec == nil {
		d := NewDcrawDecoder("")
		d.Logger = logger
		dec = d
	}
	return &Converter{Decoder: dec, Parser: DcrawParser{}, Logger: logger}
}

// DefaultFitsPath is the output path used when none is given.
func DefaultFitsPath(rawPath string) string {
	return rawPath + ".fits"
}

// Convert decodes rawPath, extracts its capture metadata and assembles the
// container for mode. Nothing is written.
func (cv *Converter) Convert(ctx context.Context, rawPath string, mode OutputMode) (*Container, error) {
	log := cv.Logger
	parser := cv.Parser
	if parser == nil {
		parser = DcrawParser{}
	}

	cmds, _ := cv.Decoder.(commandDescriber)
	if cmds != nil {
		log.Debugf("%s", strings.Join(cmds.DecodeCommand(rawPath, mode.DecodeMode()), " "))
	}
	log.Step("decode", rawPath)
	grid, err := cv.Decoder.DecodeImage(ctx, rawPath, mode.DecodeMode())
	if err != nil {
		log.Done("failed")
		return nil, err
	}
	log.Done(grid.String())

	if cmds != nil {
		log.Debugf("%s", strings.Join(cmds.MetadataCommand(rawPath), " "))
	}
	log.Step("metadata")
	report, err := cv.Decoder.FetchMetadata(ctx, rawPath)
	if err != nil {
		log.Done("failed")
		return nil, err
	}
	meta, err := parser.Parse(report)
	if err != nil {
		log.Done("failed")
		return nil, fmt.Errorf("parsing metadata of %s: %w", rawPath, err)
	}
	log.Done(meta.Camera)
	log.Debugf("Date: %s", meta.TimestampString())
	log.Debugf("Shutter: %s", meta.Shutter)
	log.Debugf("Aperture: %s", meta.Aperture)
	log.Debugf("ISO: %s", meta.ISO)
	log.Debugf("Focal Length: %s", meta.FocalLength)
	log.Debugf("Original File: %s", meta.Filename)
	log.Debugf("Camera: %s", meta.Camera)
	tile := meta.Pattern.Arrangement()
	log.Debugf("Bayer filter structure: [%c %c] [%c %c]", tile[0][0], tile[0][1], tile[1][0], tile[1][1])

	log.Step("assemble", mode)
	c, err := Assemble(mode, grid, meta)
	if err != nil {
		log.Done("failed")
		return nil, err
	}
	log.Done(fmt.Sprintf("%d unit(s)", len(c.HDUs)))
	return c, nil
}

// ConvertFile converts rawPath and writes the result to fitsPath, or to
// DefaultFitsPath(rawPath) when fitsPath is empty.
func (cv *Converter) ConvertFile(ctx context.Context, rawPath, fitsPath string, mode OutputMode, overwrite bool) (*Container, error) {
	c, err := cv.Convert(ctx, rawPath, mode)
	if err != nil {
		return nil, err
	}
	if fitsPath == "" {
		fitsPath = DefaultFitsPath(rawPath)
	}

	cv.Logger.Step("write", fitsPath)
	if err := c.WriteFile(fitsPath, overwrite); err != nil {
		cv.Logger.Done("failed")
		return nil, err
	}
	cv.Logger.Done("ok")
	return c, nil
}
