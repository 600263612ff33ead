package rawfits

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the canonical rendering of CaptureMetadata.Timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// CaptureMetadata holds the capture parameters recovered from a decoder
// report. Text fields are kept verbatim.
type CaptureMetadata struct {
	Timestamp   time.Time
	Shutter     string // seconds, e.g. "1/200.0"
	Aperture    string // f-ratio, e.g. "5.6"
	ISO         string
	FocalLength string // millimetres
	Filename    string
	Camera      string
	Pattern     BayerPattern
}

// TimestampString renders the timestamp as "YYYY-MM-DD HH:MM:SS".
func (m *CaptureMetadata) TimestampString() string {
	return m.Timestamp.Format(TimestampLayout)
}

// MetadataParser turns a decoder's textual report into CaptureMetadata.
// One implementation exists per decoder output format.
type MetadataParser interface {
	Parse(report string) (*CaptureMetadata, error)
}

// DcrawParser reads the report printed by "dcraw -i -v".
type DcrawParser struct{}

var (
	reTimestamp = regexp.MustCompile(`Timestamp:(.*)`)
	reShutter   = regexp.MustCompile(`Shutter:(.*)sec`)
	reAperture  = regexp.MustCompile(`Aperture: f/(.*)`)
	reISO       = regexp.MustCompile(`ISO speed:(.*)`)
	reFocal     = regexp.MustCompile(`Focal length: (.*)mm`)
	reFilename  = regexp.MustCompile(`Filename:(.*)`)
	reCamera    = regexp.MustCompile(`Camera:(.*)`)
	rePattern   = regexp.MustCompile(`Filter pattern:(.*)`)
)

var monthNumbers = map[string]time.Month{
	"Jan": time.January, "Feb": time.February, "Mar": time.March,
	"Apr": time.April, "May": time.May, "Jun": time.June,
	"Jul": time.July, "Aug": time.August, "Sep": time.September,
	"Oct": time.October, "Nov": time.November, "Dec": time.December,
}

// Parse extracts every field or fails on the first one that is missing.
func (DcrawParser) Parse(report string) (*CaptureMetadata, error) {
	var md CaptureMetadata

	stamp, err := findField(report, reTimestamp, "Timestamp")
	if err != nil {
		return nil, err
	}
	if md.Timestamp, err = parseTimestamp(stamp); err != nil {
		return nil, err
	}
	if md.Shutter, err = findField(report, reShutter, "Shutter"); err != nil {
		return nil, err
	}
	if md.Aperture, err = findField(report, reAperture, "Aperture"); err != nil {
		return nil, err
	}
	if md.ISO, err = findField(report, reISO, "ISO speed"); err != nil {
		return nil, err
	}
	if md.FocalLength, err = findField(report, reFocal, "Focal length"); err != nil {
		return nil, err
	}
	if md.Filename, err = findField(report, reFilename, "Filename"); err != nil {
		return nil, err
	}
	if md.Camera, err = findField(report, reCamera, "Camera"); err != nil {
		return nil, err
	}
	pattern, err := findField(report, rePattern, "Filter pattern")
	if err != nil {
		return nil, err
	}
	if len(pattern) < 4 {
		return nil, &MetadataParseError{Field: "Filter pattern", Reason: "need at least 4 characters, got " + strconv.Quote(pattern)}
	}
	md.Pattern = BayerPattern(pattern[:4])

	return &md, nil
}

func findField(report string, re *regexp.Regexp, field string) (string, error) {
	m := re.FindStringSubmatch(report)
	if m == nil {
		return "", &MetadataParseError{Field: field, Reason: "label not present in decoder output"}
	}
	return strings.TrimSpace(m[1]), nil
}

// parseTimestamp reads "Mon Jan  5 13:07:42 2009".
func parseTimestamp(s string) (time.Time, error) {
	bad := func(reason string) (time.Time, error) {
		return time.Time{}, &MetadataParseError{Field: "Timestamp", Reason: reason + ": " + strconv.Quote(s)}
	}

	tokens := strings.Fields(s)
	if len(tokens) < 5 {
		return bad("expected weekday month day HH:MM:SS year")
	}
	month, ok := monthNumbers[tokens[1]]
	if !ok {
		return bad("unknown month")
	}
	day, err := strconv.Atoi(tokens[2])
	if err != nil || day < 1 || day > 31 {
		return bad("bad day")
	}
	clock := strings.Split(tokens[3], ":")
	if len(clock) != 3 {
		return bad("bad time of day")
	}
	var hms [3]int
	for i, part := range clock {
		v, err := strconv.Atoi(part)
		if err != nil || v < 0 {
			return bad("bad time of day")
		}
		hms[i] = v
	}
	if hms[0] > 23 || hms[1] > 59 || hms[2] > 59 {
		return bad("bad time of day")
	}
	year, err := strconv.Atoi(tokens[4])
	if err != nil {
		return bad("bad year")
	}

	t := time.Date(year, month, day, hms[0], hms[1], hms[2], 0, time.UTC)
	if t.Day() != day {
		return bad("day out of range for month")
	}
	return t, nil
}
