package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/wesleyorama2/clientbench/internal/runner"
)

// Formatter renders human-readable status for the terminal. Nothing it
// produces is ever written to the sample output.
type Formatter struct {
	NoColor bool
	scheme  *ColorScheme
}

// NewFormatter creates a new formatter
func NewFormatter(noColor bool) *Formatter {
	scheme := DefaultColorScheme()
	if noColor {
		scheme = NoColorScheme()
	}
	return &Formatter{NoColor: noColor, scheme: scheme}
}

// Field is one labelled line of a listing.
type Field struct {
	Label string
	Value string
}

// FormatFields aligns labels and values in two columns.
func (f *Formatter) FormatFields(fields []Field) string {
	width := 0
	for _, fl := range fields {
		if len(fl.Label) > width {
			width = len(fl.Label)
		}
	}

	var buf strings.Builder
	for _, fl := range fields {
		label := fl.Label + ":" + strings.Repeat(" ", width-len(fl.Label))
		buf.WriteString(fmt.Sprintf("  %s %s\n", f.scheme.Label.Sprint(label), f.scheme.Value.Sprint(fl.Value)))
	}
	return buf.String()
}

// FormatReport renders the final status of a run: one line per failed
// worker and a summary line.
func (f *Formatter) FormatReport(r *runner.Report) string {
	var buf strings.Builder

	for _, o := range r.Failed() {
		buf.WriteString(fmt.Sprintf("%s worker %d stopped after %d iterations: %s\n",
			ErrorIcon(f.NoColor), o.WorkerID, o.Iterations, f.scheme.Error.Sprint(o.Err)))
	}
	if r.SinkErr != nil {
		buf.WriteString(fmt.Sprintf("%s output incomplete: %s\n", ErrorIcon(f.NoColor), f.scheme.Error.Sprint(r.SinkErr)))
	}

	icon, status := SuccessIcon(f.NoColor), f.scheme.Success.Sprint("PASS")
	if !r.Success() {
		icon, status = ErrorIcon(f.NoColor), f.scheme.Error.Sprint("FAIL")
	}
	buf.WriteString(fmt.Sprintf("%s %s %s samples from %d workers in %s\n",
		icon, status,
		f.scheme.Highlight.Sprint(r.Iterations()),
		len(r.Outcomes),
		r.Elapsed.Round(time.Millisecond)))
	return buf.String()
}

// FormatStatus renders a single status line such as the outcome of one suite
// query.
func (f *Formatter) FormatStatus(ok bool, format string, args ...any) string {
	icon := SuccessIcon(f.NoColor)
	if !ok {
		icon = ErrorIcon(f.NoColor)
	}
	return icon + " " + fmt.Sprintf(format, args...) + "\n"
}

// FormatNotice renders an informational line.
func (f *Formatter) FormatNotice(format string, args ...any) string {
	return InfoIcon(f.NoColor) + " " + fmt.Sprintf(format, args...) + "\n"
}

// FormatWarning renders a warning line.
func (f *Formatter) FormatWarning(format string, args ...any) string {
	return WarningIcon(f.NoColor) + " " + f.scheme.Warn.Sprintf(format, args...) + "\n"
}
