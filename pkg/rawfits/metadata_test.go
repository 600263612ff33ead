package rawfits

import (
	"errors"
	"strings"
	"testing"
)

const sampleReport = `
Filename: IMG_1204.CR2
Timestamp: Mon Jan  5 13:07:42 2009
Camera: Canon EOS 350D DIGITAL
Owner: unknown
ISO speed: 100
Shutter: 1/200.0 sec
Aperture: f/5.6
Focal length: 18.0 mm
Embedded ICC profile: no
Number of raw images: 1
Thumb size:  1536 x 1024
Full size:   3474 x 2314
Image size:  3474 x 2314
Output size: 3474 x 2314
Raw colors: 3
Filter pattern: RGGBRGGBRGGBRGGB
Daylight multipliers: 2.391381 0.929156 1.289254
`

func TestDcrawParserParse(t *testing.T) {
	md, err := DcrawParser{}.Parse(sampleReport)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if got := md.TimestampString(); got != "2009-01-05 13:07:42" {
		t.Errorf("timestamp = %q, want 2009-01-05 13:07:42", got)
	}
	checks := []struct {
		name, got, want string
	}{
		{"shutter", md.Shutter, "1/200.0"},
		{"aperture", md.Aperture, "5.6"},
		{"iso", md.ISO, "100"},
		{"focal", md.FocalLength, "18.0"},
		{"filename", md.Filename, "IMG_1204.CR2"},
		{"camera", md.Camera, "Canon EOS 350D DIGITAL"},
		{"pattern", string(md.Pattern), "RGGB"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.name, c.got, c.want)
		}
	}

	want := [2][2]byte{{'R', 'G'}, {'G', 'B'}}
	if got := md.Pattern.Arrangement(); got != want {
		t.Errorf("arrangement = %q, want %q", got, want)
	}
}

func TestDcrawParserMissingField(t *testing.T) {
	tests := []struct {
		label string
		field string
	}{
		{"ISO speed:", "ISO speed"},
		{"Timestamp:", "Timestamp"},
		{"Shutter:", "Shutter"},
		{"Aperture:", "Aperture"},
		{"Focal length:", "Focal length"},
		{"Filename:", "Filename"},
		{"Camera:", "Camera"},
		{"Filter pattern:", "Filter pattern"},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			report := strings.Replace(sampleReport, tt.label, "Removed-", 1)
			_, err := DcrawParser{}.Parse(report)
			var mpe *MetadataParseError
			if !errors.As(err, &mpe) {
				t.Fatalf("expected MetadataParseError, got %v", err)
			}
			if mpe.Field != tt.field {
				t.Errorf("field = %q, want %q", mpe.Field, tt.field)
			}
		})
	}
}

func TestDcrawParserShortPattern(t *testing.T) {
	report := strings.Replace(sampleReport, "RGGBRGGBRGGBRGGB", "RG", 1)
	_, err := DcrawParser{}.Parse(report)
	var mpe *MetadataParseError
	if !errors.As(err, &mpe) || mpe.Field != "Filter pattern" {
		t.Fatalf("expected Filter pattern error, got %v", err)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"Mon Jan  5 13:07:42 2009", "2009-01-05 13:07:42", false},
		{"Sat Dec 31 23:59:59 2016", "2016-12-31 23:59:59", false},
		{" Thu Feb 29 00:00:00 2024 ", "2024-02-29 00:00:00", false},
		{"Mon Foo 5 13:07:42 2009", "", true},
		{"Mon Jan 5 13:07 2009", "", true},
		{"Mon Jan 5 25:07:42 2009", "", true},
		{"Wed Feb 30 10:00:00 2009", "", true},
		{"Mon Jan 5", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseTimestamp(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTimestamp: %v", err)
			}
			if s := got.Format(TimestampLayout); s != tt.want {
				t.Errorf("got %s, want %s", s, tt.want)
			}
		})
	}
}
