package rawfits

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned, wrapped with the path, when the raw file does not exist.
var ErrNotFound = errors.New("raw file not found")

// FormatError reports a pixel-map file that does not follow the binary PGM layout.
type FormatError struct {
	Path   string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Path == "" {
		return "not a raw PGM file: " + e.Reason
	}
	return fmt.Sprintf("not a raw PGM file: '%s': %s", e.Path, e.Reason)
}

// MetadataParseError reports a field that could not be recovered from the
// decoder's metadata report.
type MetadataParseError struct {
	Field  string
	Reason string
}

func (e *MetadataParseError) Error() string {
	return fmt.Sprintf("metadata field %s: %s", e.Field, e.Reason)
}

// ExternalToolError reports a decoder invocation that failed or produced no output.
type ExternalToolError struct {
	Command []string
	Output  string
	Err     error
}

func (e *ExternalToolError) Error() string {
	msg := fmt.Sprintf("running %s: %v", strings.Join(e.Command, " "), e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *ExternalToolError) Unwrap() error { return e.Err }
