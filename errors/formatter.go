// Package errors provides error formatting for the calculation engine. It
// separates presentation from the engine packages, allowing errors to be
// rendered in multiple formats (text, JSON) for different consumers (CLI,
// HTTP API).
//
// The package defines a Formatter interface and provides two implementations:
//   - TextFormatter: formats errors for command-line output, pointing at the
//     offending position of a formula when one is known
//   - JSONFormatter: formats errors as structured JSON for the HTTP API
//
// Error types remain in their own packages (pipeline, formula, dependency,
// loader); this package only unwraps and renders them.
package errors

import (
	"bytes"
	"encoding/json"
	goerrors "errors"
	"strings"

	"github.com/finmodel/finmodel/dependency"
	"github.com/finmodel/finmodel/formula"
	"github.com/finmodel/finmodel/loader"
	"github.com/finmodel/finmodel/pipeline"
)

// Formatter formats errors for output in different formats.
type Formatter interface {
	// Format formats a single error.
	Format(err error) string

	// FormatAll formats multiple errors.
	FormatAll(errs []error) string
}

// Flatten expands aggregated errors into their parts. Validation failures
// reported through a stage error become one entry per problem; every other
// error is returned as is.
func Flatten(errs ...error) []error {
	var out []error
	for _, err := range errs {
		if err == nil {
			continue
		}
		var verrs *pipeline.ValidationErrors
		if goerrors.As(err, &verrs) {
			out = append(out, verrs.Errors...)
			continue
		}
		out = append(out, err)
	}
	return out
}

// TextFormatter formats errors for command-line output.
type TextFormatter struct {
	context bool
	indent  string
}

// TextFormatterOption is an option for configuring TextFormatter.
type TextFormatterOption func(*TextFormatter)

// WithoutContext renders every error on a single line, without formula or
// cycle context.
func WithoutContext() TextFormatterOption {
	return func(tf *TextFormatter) {
		tf.context = false
	}
}

// WithIndent sets the prefix of context lines. The default is three spaces.
func WithIndent(indent string) TextFormatterOption {
	return func(tf *TextFormatter) {
		tf.indent = indent
	}
}

// NewTextFormatter creates a new text formatter.
func NewTextFormatter(opts ...TextFormatterOption) *TextFormatter {
	tf := &TextFormatter{context: true, indent: "   "}
	for _, opt := range opts {
		opt(tf)
	}
	return tf
}

// Format formats a single error. Aggregated validation errors are
// formatted one per paragraph.
func (tf *TextFormatter) Format(err error) string {
	var verrs *pipeline.ValidationErrors
	if goerrors.As(err, &verrs) {
		return tf.FormatAll(verrs.Errors)
	}
	if !tf.context {
		return err.Error()
	}

	var parseErr *formula.ParseError
	if goerrors.As(err, &parseErr) && parseErr.Text != "" {
		return tf.formatWithSourceContext(err.Error(), parseErr.Text, parseErr.Pos)
	}

	var cycleErr *dependency.CircularDependencyError
	if goerrors.As(err, &cycleErr) {
		return tf.formatWithList(err.Error(), cycleErr.AccountIDs)
	}

	return err.Error()
}

// FormatAll formats multiple errors, separating them with blank lines.
func (tf *TextFormatter) FormatAll(errs []error) string {
	errs = Flatten(errs...)
	if len(errs) == 0 {
		return ""
	}

	var buf bytes.Buffer
	for i, err := range errs {
		buf.WriteString(strings.TrimSuffix(tf.Format(err), "\n"))

		// Blank line between errors, but not after the last one
		if i < len(errs)-1 {
			if tf.context {
				buf.WriteString("\n\n")
			} else {
				buf.WriteByte('\n')
			}
		}
	}
	return buf.String()
}

// formatWithSourceContext shows the formula text below the message with a
// caret under the offending rune.
func (tf *TextFormatter) formatWithSourceContext(message, text string, pos int) string {
	var buf bytes.Buffer
	buf.WriteString(message)
	buf.WriteString("\n\n")
	buf.WriteString(tf.indent)
	buf.WriteString(text)
	buf.WriteByte('\n')

	runes := []rune(text)
	if pos > len(runes) {
		pos = len(runes)
	}
	buf.WriteString(tf.indent)
	// Keep tabs so the caret lines up under tab-indented text.
	for _, r := range runes[:pos] {
		if r == '\t' {
			buf.WriteByte('\t')
		} else {
			buf.WriteByte(' ')
		}
	}
	buf.WriteString("^\n")
	return buf.String()
}

func (tf *TextFormatter) formatWithList(message string, items []string) string {
	var buf bytes.Buffer
	buf.WriteString(message)
	buf.WriteString("\n\n")
	for _, item := range items {
		buf.WriteString(tf.indent)
		buf.WriteString(item)
		buf.WriteByte('\n')
	}
	return buf.String()
}

// JSONFormatter formats errors as JSON.
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// ErrorJSON represents an error in JSON format.
type ErrorJSON struct {
	Type     string        `json:"type"`
	Message  string        `json:"message"`
	Account  string        `json:"account,omitempty"`
	Period   string        `json:"period,omitempty"`
	Field    string        `json:"field,omitempty"`
	Stage    string        `json:"stage,omitempty"`
	Accounts []string      `json:"accounts,omitempty"`
	Position *PositionJSON `json:"position,omitempty"`
}

// PositionJSON represents a position in a model file or formula.
type PositionJSON struct {
	Filename string `json:"filename,omitempty"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
}

// Format formats a single error as JSON.
func (jf *JSONFormatter) Format(err error) string {
	data, _ := json.Marshal(jf.toJSON(err))
	return string(data)
}

// FormatAll formats multiple errors as a JSON array.
func (jf *JSONFormatter) FormatAll(errs []error) string {
	data, _ := json.MarshalIndent(jf.FormatAllToSlice(errs), "", "  ")
	return string(data)
}

// FormatAllToSlice returns errors as a slice of ErrorJSON structs.
// Aggregated errors are flattened first.
func (jf *JSONFormatter) FormatAllToSlice(errs []error) []ErrorJSON {
	errs = Flatten(errs...)
	result := make([]ErrorJSON, 0, len(errs))
	for _, err := range errs {
		result = append(result, jf.toJSON(err))
	}
	return result
}

// toJSON converts an error to ErrorJSON, picking the most specific type
// in the chain.
func (jf *JSONFormatter) toJSON(err error) ErrorJSON {
	errJSON := ErrorJSON{
		Type:    "error",
		Message: err.Error(),
	}

	var stageErr *pipeline.StageExecutionError
	if goerrors.As(err, &stageErr) {
		errJSON.Type = "stage"
		errJSON.Stage = stageErr.Stage
	}

	var (
		validationErr *pipeline.ValidationError
		calcErr       *pipeline.CalculationError
		cycleErr      *dependency.CircularDependencyError
		parseErr      *formula.ParseError
		evalErr       *formula.EvaluationError
		loadErr       *loader.Error
	)
	switch {
	case goerrors.As(err, &validationErr):
		errJSON.Type = "validation"
		errJSON.Account = validationErr.AccountID
		errJSON.Period = validationErr.PeriodID
		errJSON.Field = validationErr.Field
	case goerrors.As(err, &calcErr):
		errJSON.Type = "calculation"
		errJSON.Account = calcErr.AccountID
		errJSON.Period = calcErr.PeriodID
	case goerrors.As(err, &cycleErr):
		errJSON.Type = "circularDependency"
		errJSON.Accounts = cycleErr.AccountIDs
	case goerrors.As(err, &loadErr):
		errJSON.Type = "load"
		errJSON.Position = &PositionJSON{Filename: loadErr.Filename, Line: loadErr.Line}
	}

	// Formula errors refine calculation errors.
	switch {
	case goerrors.As(err, &parseErr):
		if errJSON.Type == "error" {
			errJSON.Type = "parse"
		}
		errJSON.Position = &PositionJSON{Column: parseErr.Pos + 1}
	case goerrors.As(err, &evalErr):
		if errJSON.Type == "error" {
			errJSON.Type = "evaluation"
		}
	}

	return errJSON
}
