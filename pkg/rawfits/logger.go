package rawfits

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Logger prints progress lines of the form
//
//	[step] detail ... → result (1.23s)
//
// A nil *Logger discards everything.
type Logger struct {
	out        io.Writer
	verbose    bool
	stepStart  time.Time
	totalStart time.Time
}

// NewLogger writes to out, or stdout when out is nil. Debugf output is only
// emitted when verbose is set.
func NewLogger(out io.Writer, verbose bool) *Logger {
	if out == nil {
		out = os.Stdout
	}
	return &Logger{out: out, verbose: verbose, totalStart: time.Now()}
}

// Step starts a timed step.
func (l *Logger) Step(name string, params ...interface{}) {
	if l == nil {
		return
	}
	l.stepStart = time.Now()
	if len(params) > 0 {
		fmt.Fprintf(l.out, "[%s] %v ... ", name, params[0])
	} else {
		fmt.Fprintf(l.out, "[%s] ", name)
	}
}

// Done finishes the current step.
func (l *Logger) Done(result string) {
	if l == nil {
		return
	}
	elapsed := time.Since(l.stepStart)
	if elapsed > 100*time.Millisecond {
		fmt.Fprintf(l.out, "→ %s (%.2fs)\n", result, elapsed.Seconds())
	} else {
		fmt.Fprintf(l.out, "→ %s\n", result)
	}
}

// Total prints the time since the logger was created.
func (l *Logger) Total() {
	if l == nil {
		return
	}
	fmt.Fprintf(l.out, "done in %.2fs\n", time.Since(l.totalStart).Seconds())
}

func (l *Logger) Infof(format string, args ...interface{}) {
	if l == nil {
		return
	}
	fmt.Fprintf(l.out, "  • "+format+"\n", args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	fmt.Fprintf(l.out, "  ⚠ "+format+"\n", args...)
}

// Debugf prints only when the logger is verbose.
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l == nil || !l.verbose {
		return
	}
	fmt.Fprintf(l.out, "    "+format+"\n", args...)
}

// Verbose reports whether debug output is enabled.
func (l *Logger) Verbose() bool {
	return l != nil && l.verbose
}
