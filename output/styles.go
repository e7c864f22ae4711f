// Package output provides styling helpers and the result grid for terminal output.
package output

import (
	"io"

	"github.com/muesli/termenv"
)

// ANSI palette indexes.
const (
	colorRed     = "1"
	colorYellow  = "3"
	colorMagenta = "5"
)

// Styles colors text for a writer. Colors are dropped automatically when
// the writer is not a terminal.
type Styles struct {
	output *termenv.Output
}

// NewStyles creates a new Styles instance for the given writer.
func NewStyles(w io.Writer) *Styles {
	return &Styles{
		output: termenv.NewOutput(w),
	}
}

func (s *Styles) paint(text, color string, bold bool) string {
	style := s.output.String(text)
	if color != "" {
		style = style.Foreground(s.output.Color(color))
	}
	if bold {
		style = style.Bold()
	}
	return style.String()
}

// Error marks failed cells and failures (red, bold).
func (s *Styles) Error(text string) string { return s.paint(text, colorRed, true) }

// Account styles account labels (yellow).
func (s *Styles) Account(text string) string { return s.paint(text, colorYellow, false) }

// Amount styles non-negative values.
func (s *Styles) Amount(text string) string { return s.paint(text, "", false) }

// Negative styles negative values (red).
func (s *Styles) Negative(text string) string { return s.paint(text, colorRed, false) }

// Period styles period column headers (magenta, bold).
func (s *Styles) Period(text string) string { return s.paint(text, colorMagenta, true) }

// Keyword styles headers and timer names (bold).
func (s *Styles) Keyword(text string) string { return s.paint(text, "", true) }

// Dim returns dimmed text for secondary information.
func (s *Styles) Dim(text string) string {
	return s.output.String(text).Faint().String()
}

// Timing styles a duration: red for slow operations, dimmed otherwise.
func (s *Styles) Timing(text string, slow bool) string {
	if slow {
		return s.Negative(text)
	}
	return s.Dim(text)
}
