package rawfits

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DecodeMode selects which image the external decoder produces.
type DecodeMode int

const (
	// DecodeRaw writes the un-interpolated sensor data as a 16-bit PGM.
	DecodeRaw DecodeMode = iota
	// DecodeInterpolated writes a colour-interpolated PPM.
	DecodeInterpolated
)

func (m DecodeMode) String() string {
	if m == DecodeInterpolated {
		return "interpolated"
	}
	return "raw"
}

// Decoder wraps the external raw-image decoder.
type Decoder interface {
	// DecodeImage decodes rawPath into a pixel grid.
	DecodeImage(ctx context.Context, rawPath string, mode DecodeMode) (*PixelGrid, error)
	// FetchMetadata returns the decoder's human-readable capture report.
	FetchMetadata(ctx context.Context, rawPath string) (string, error)
}

// DefaultDcrawBinary is looked up on PATH when DcrawDecoder.Binary is empty.
const DefaultDcrawBinary = "dcraw"

// DcrawDecoder runs dcraw. The decoded image is written by dcraw beside the
// raw file (see SiblingPath) and read back from there.
type DcrawDecoder struct {
	Binary string
	// RemoveIntermediate deletes the sibling .ppm/.pgm once it has been read.
	RemoveIntermediate bool
	// Stderr receives dcraw's own progress output. Discarded when nil.
	Stderr io.Writer
	Logger *Logger
}

// NewDcrawDecoder returns a decoder running binary, or dcraw when binary is empty.
func NewDcrawDecoder(binary string) *DcrawDecoder {
	return &DcrawDecoder{Binary: binary}
}

func (d *DcrawDecoder) binary() string {
	if d.Binary == "" {
		return DefaultDcrawBinary
	}
	return d.Binary
}

// SiblingPath is rawPath with its extension replaced by .ppm (interpolated)
// or .pgm (raw).
func SiblingPath(rawPath string, mode DecodeMode) string {
	base := strings.TrimSuffix(rawPath, filepath.Ext(rawPath))
	if mode == DecodeInterpolated {
		return base + ".ppm"
	}
	return base + ".pgm"
}

// decodeArgs are the dcraw flags for each mode:
// interpolated uses quality 1 (VNG), four-colour RGB, verbose and auto
// white balance; raw is document mode with linear 16-bit output.
func decodeArgs(mode DecodeMode, rawPath string) []string {
	if mode == DecodeInterpolated {
		return []string{"-q", "1", "-f", "-v", "-a", rawPath}
	}
	return []string{"-D", "-4", rawPath}
}

func metadataArgs(rawPath string) []string {
	return []string{"-i", "-v", rawPath}
}

// DecodeCommand is the command line DecodeImage runs.
func (d *DcrawDecoder) DecodeCommand(rawPath string, mode DecodeMode) []string {
	return append([]string{d.binary()}, decodeArgs(mode, rawPath)...)
}

// MetadataCommand is the command line FetchMetadata runs.
func (d *DcrawDecoder) MetadataCommand(rawPath string) []string {
	return append([]string{d.binary()}, metadataArgs(rawPath)...)
}

func checkExists(rawPath string) error {
	if _, err := os.Stat(rawPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, rawPath)
		}
		return fmt.Errorf("checking raw file: %w", err)
	}
	return nil
}

func (d *DcrawDecoder) DecodeImage(ctx context.Context, rawPath string, mode DecodeMode) (*PixelGrid, error) {
	if err := checkExists(rawPath); err != nil {
		return nil, err
	}

	// A sibling left by an earlier run must not pass for this run's output.
	sibling := SiblingPath(rawPath, mode)
	if err := os.Remove(sibling); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("removing stale decoder output: %w", err)
	}

	cmd := exec.CommandContext(ctx, d.binary(), decodeArgs(mode, rawPath)...)
	var stderr bytes.Buffer
	if d.Stderr != nil {
		cmd.Stderr = io.MultiWriter(&stderr, d.Stderr)
	} else {
		cmd.Stderr = &stderr
	}
	if err := cmd.Run(); err != nil {
		return nil, &ExternalToolError{Command: cmd.Args, Output: stderr.String(), Err: err}
	}

	if _, err := os.Stat(sibling); err != nil {
		return nil, &ExternalToolError{Command: cmd.Args, Output: stderr.String(), Err: fmt.Errorf("expected output %s: %w", sibling, err)}
	}
	if d.RemoveIntermediate {
		defer func() {
			if err := os.Remove(sibling); err != nil {
				d.Logger.Warnf("could not remove %s: %v", sibling, err)
			}
		}()
	}

	if mode == DecodeInterpolated {
		grid, err := readPPM(sibling)
		if err != nil {
			return nil, fmt.Errorf("reading decoder output: %w", err)
		}
		return grid, nil
	}
	return ReadPGM(sibling, nil)
}

func (d *DcrawDecoder) FetchMetadata(ctx context.Context, rawPath string) (string, error) {
	if err := checkExists(rawPath); err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, d.binary(), metadataArgs(rawPath)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &ExternalToolError{Command: cmd.Args, Output: stderr.String(), Err: err}
	}
	if stdout.Len() == 0 {
		return "", &ExternalToolError{Command: cmd.Args, Output: stderr.String(), Err: errors.New("no metadata on standard output")}
	}
	return stdout.String(), nil
}
