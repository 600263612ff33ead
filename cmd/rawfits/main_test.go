package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	rf "rawfits/pkg/rawfits"
)

func TestResolveConfig(t *testing.T) {
	t.Setenv(rf.ConfigEnv, "")
	tests := []struct {
		name string
		args []string
		want rf.OutputMode
	}{
		{"default", nil, rf.ModeCombinedRaw},
		{"split flag", []string{"-split"}, rf.ModeSplitChannels},
		{"interpolate wins", []string{"-split", "-interpolate"}, rf.ModeInterpolated},
		{"mode flag wins", []string{"-mode", "split", "-interpolate"}, rf.ModeSplitChannels},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, _, set, err := parseFlags(append(tt.args, "x.nef"), &bytes.Buffer{})
			if err != nil {
				t.Fatal(err)
			}
			_, mode, err := resolveConfig(opts, set)
			if err != nil {
				t.Fatal(err)
			}
			if mode != tt.want {
				t.Errorf("mode = %v, want %v", mode, tt.want)
			}
		})
	}
}

func TestResolveConfigFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rawfits.yaml")
	if err := os.WriteFile(path, []byte("mode: interpolated\ndcraw: /usr/local/bin/dcraw\noverwrite: true\n"), 0644); err != nil {
		t.Fatal(err)
	}

	opts, _, set, err := parseFlags([]string{"-config", path, "-dcraw", "/bin/dcraw", "-clean", "x.nef"}, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	cfg, mode, err := resolveConfig(opts, set)
	if err != nil {
		t.Fatal(err)
	}
	if mode != rf.ModeInterpolated {
		t.Errorf("mode = %v, want config value", mode)
	}
	if cfg.Dcraw != "/bin/dcraw" || !cfg.Overwrite || cfg.KeepIntermediate {
		t.Errorf("got %+v", cfg)
	}
}

func TestRunArgumentErrors(t *testing.T) {
	t.Setenv(rf.ConfigEnv, "")
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no inputs", nil, "usage"},
		{"output with many inputs", []string{"-o", "x.fits", "a.nef", "b.nef"}, "-o can only be used"},
		{"preview with many inputs", []string{"-preview", "p.jpg", "a.nef", "b.nef"}, "single input"},
		{"bad mode", []string{"-mode", "sideways", "a.nef"}, "unknown output mode"},
		{"missing file", []string{filepath.Join(t.TempDir(), "a.nef")}, "does not exist"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(context.Background(), tt.args, &stdout, &stderr)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestRunConvertsFiles(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake decoder is a shell script")
	}
	t.Setenv(rf.ConfigEnv, "")
	dir := t.TempDir()

	report := `Filename: DSC_0001.NEF
Timestamp: Sat Mar 14 21:45:03 2015
Camera: Nikon D7000
ISO speed: 1600
Shutter: 30.0 sec
Aperture: f/2.8
Focal length: 35.0 mm
Filter pattern: BGGRBGGRBGGRBGGR
`
	if err := os.WriteFile(filepath.Join(dir, "report.txt"), []byte(report), 0644); err != nil {
		t.Fatal(err)
	}
	dcraw := filepath.Join(dir, "dcraw")
	script := `#!/bin/sh
for last; do :; done
base="${last%.*}"
case "$1" in
-D) printf 'P5 4 4 255\n0123456789abcdef' > "$base.pgm" ;;
-i) cat '` + filepath.Join(dir, "report.txt") + `' ;;
esac
`
	if err := os.WriteFile(dcraw, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	var inputs []string
	for _, name := range []string{"DSC_0001.NEF", "DSC_0002.NEF"} {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("raw"), 0644); err != nil {
			t.Fatal(err)
		}
		inputs = append(inputs, p)
	}

	var stdout, stderr bytes.Buffer
	args := append([]string{"-dcraw", dcraw, "-split", "-clean", "-stats"}, inputs...)
	if err := run(context.Background(), args, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}

	for _, in := range inputs {
		c, err := rf.ReadFitsFile(in + ".fits")
		if err != nil {
			t.Fatalf("reading output: %v", err)
		}
		if len(c.HDUs) != 4 || c.Primary().BayerPattern() != "BGGR" {
			t.Errorf("%s: %d units, pattern %q", in, len(c.HDUs), c.Primary().BayerPattern())
		}
		if _, err := os.Stat(strings.TrimSuffix(in, ".NEF") + ".pgm"); !os.IsNotExist(err) {
			t.Errorf("intermediate PGM left behind for %s", in)
		}
	}
	out := stdout.String()
	for _, want := range []string{"Nikon D7000", "BGGR", "G2", "median="} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}

	if err := run(context.Background(), args, &stdout, &stderr); err == nil {
		t.Error("second run should refuse to overwrite existing output")
	}
}
