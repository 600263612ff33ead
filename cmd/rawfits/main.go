package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	rf "rawfits/pkg/rawfits"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	output      string
	mode        string
	split       bool
	interpolate bool
	dcraw       string
	configPath  string
	overwrite   bool
	clean       bool
	preview     string
	histogram   string
	stats       bool
	verbose     bool
}

func parseFlags(args []string, stderr io.Writer) (*options, []string, map[string]bool, error) {
	opts := &options{}
	fs := flag.NewFlagSet("rawfits", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.output, "o", "", "output FITS path (single input only; default <raw>.fits)")
	fs.StringVar(&opts.mode, "mode", "", "output mode: raw, split or interpolated")
	fs.BoolVar(&opts.split, "split", false, "split Bayer channels into four image units")
	fs.BoolVar(&opts.interpolate, "interpolate", false, "use the decoder's colour interpolation")
	fs.StringVar(&opts.dcraw, "dcraw", "", "decoder binary (default dcraw)")
	fs.StringVar(&opts.configPath, "config", "", "YAML config file (default $"+rf.ConfigEnv+")")
	fs.BoolVar(&opts.overwrite, "overwrite", false, "replace an existing output file")
	fs.BoolVar(&opts.clean, "clean", false, "remove the decoder's .ppm/.pgm output after reading it")
	fs.StringVar(&opts.preview, "preview", "", "write a JPEG quick-look to this path")
	fs.StringVar(&opts.histogram, "histogram", "", "write a PNG histogram to this path")
	fs.BoolVar(&opts.stats, "stats", false, "print per-unit statistics")
	fs.BoolVar(&opts.verbose, "v", false, "be chatty")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: rawfits [flags] <raw-file>...\n\n")
		fmt.Fprintf(stderr, "Converts camera raw files (NEF, CR2, ...) to FITS using dcraw.\n\nFlags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, nil, nil, err
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return opts, fs.Args(), set, nil
}

// resolveConfig layers explicitly set flags over the config file.
func resolveConfig(opts *options, set map[string]bool) (rf.Config, rf.OutputMode, error) {
	cfg, err := rf.LoadConfig(opts.configPath)
	if err != nil {
		return cfg, 0, err
	}
	if set["dcraw"] {
		cfg.Dcraw = opts.dcraw
	}
	if set["overwrite"] {
		cfg.Overwrite = opts.overwrite
	}
	if set["clean"] {
		cfg.KeepIntermediate = !opts.clean
	}
	if set["v"] {
		cfg.Verbose = opts.verbose
	}

	var mode rf.OutputMode
	switch {
	case set["mode"]:
		mode, err = rf.ParseOutputMode(opts.mode)
	case set["split"] || set["interpolate"]:
		mode = rf.ModeFromFlags(opts.split, opts.interpolate)
	default:
		mode, err = cfg.OutputMode()
	}
	if err != nil {
		return cfg, 0, err
	}
	return cfg, mode, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, inputs, set, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if len(inputs) < 1 {
		return fmt.Errorf("usage: rawfits [flags] <raw-file>...")
	}
	if opts.output != "" && len(inputs) > 1 {
		return fmt.Errorf("-o can only be used with a single input, got %d", len(inputs))
	}
	if (opts.preview != "" || opts.histogram != "") && len(inputs) > 1 {
		return fmt.Errorf("-preview and -histogram can only be used with a single input")
	}

	cfg, mode, err := resolveConfig(opts, set)
	if err != nil {
		return err
	}

	logger := rf.NewLogger(stdout, cfg.Verbose)
	decoder := cfg.Decoder(logger)
	if cfg.Verbose {
		decoder.Stderr = stderr
	}
	conv := rf.NewConverter(decoder, logger)

	for _, input := range inputs {
		if err := convertOne(ctx, conv, input, opts, cfg, mode, stdout); err != nil {
			if errors.Is(err, rf.ErrNotFound) {
				return fmt.Errorf("file %s does not exist", input)
			}
			return err
		}
	}
	logger.Total()
	return nil
}

func convertOne(ctx context.Context, conv *rf.Converter, input string, opts *options, cfg rf.Config, mode rf.OutputMode, stdout io.Writer) error {
	startTime := time.Now()
	c, err := conv.ConvertFile(ctx, input, opts.output, mode, cfg.Overwrite)
	if err != nil {
		return err
	}
	elapsed := time.Since(startTime)

	printSummary(stdout, input, c, elapsed, opts.stats)

	if opts.preview != "" {
		conv.Logger.Step("preview", opts.preview)
		if err := rf.WritePreview(c, cfg.PreviewWidth, opts.preview); err != nil {
			conv.Logger.Done("failed")
			return fmt.Errorf("writing preview: %w", err)
		}
		conv.Logger.Done("ok")
	}
	if opts.histogram != "" {
		conv.Logger.Step("histogram", opts.histogram)
		if err := rf.WriteHistogram(c, opts.histogram); err != nil {
			conv.Logger.Done("failed")
			return err
		}
		conv.Logger.Done("ok")
	}
	return nil
}

func printSummary(w io.Writer, input string, c *rf.Container, elapsed time.Duration, withStats bool) {
	p := c.Primary()
	fmt.Fprintln(w)
	fmt.Fprintf(w, "=== %s (%.1fs) ===\n", filepath.Base(input), elapsed.Seconds())
	fmt.Fprintf(w, "  Camera:        %s\n", p.CameraName())
	fmt.Fprintf(w, "  Captured:      %s\n", p.GetString(rf.KeyObsTime))
	fmt.Fprintf(w, "  Exposure:      %s s  f/%s  ISO %s  %s mm\n",
		p.GetString(rf.KeyExpTime), p.GetString(rf.KeyAperture), p.GetString(rf.KeyISO), p.GetString(rf.KeyFocal))
	fmt.Fprintf(w, "  Bayer pattern: %s\n", p.BayerPattern())
	fmt.Fprintf(w, "  Output:        %s, %d unit(s)\n", c.Mode, len(c.HDUs))

	if withStats {
		for i, h := range c.HDUs {
			label := h.Filter()
			if label == "" {
				label = fmt.Sprintf("#%d", i)
			}
			names := []string{label}
			if h.Grid.Channels == 3 {
				names = []string{"R", "G", "B"}
			}
			for ch, name := range names {
				s := rf.CalculateStatistics(h.Grid, ch)
				fmt.Fprintf(w, "  %-3s %5dx%-5d median=%.1f +/- %.1f  mean=%.1f  min=%d  max=%d\n",
					name, h.Grid.Width, h.Grid.Height, s.Median, s.Sigma(), s.Mean, s.Min, s.Max)
			}
		}
	}
	fmt.Fprintln(w, strings.Repeat("=", 30))
}
