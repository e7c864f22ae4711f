package cli

import (
	stdErrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	ferrors "github.com/finmodel/finmodel/errors"
	"github.com/finmodel/finmodel/pipeline"
)

const contextIndent = "   "

var (
	errCaretStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#FF5F87", Dark: "#FF5F87"})
	errContextStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#808080", Dark: "#808080"})
)

// ErrorRenderer renders errors with terminal styling and formula or cycle
// context.
type ErrorRenderer struct {
	formatter *ferrors.TextFormatter
}

// NewErrorRenderer creates a renderer.
func NewErrorRenderer() *ErrorRenderer {
	return &ErrorRenderer{formatter: ferrors.NewTextFormatter(ferrors.WithIndent(contextIndent))}
}

// Render formats a single error with styling and context.
func (r *ErrorRenderer) Render(err error) string {
	return r.style(r.formatter.Format(err))
}

// RenderAll formats multiple errors, separating them with blank lines.
func (r *ErrorRenderer) RenderAll(errs []error) string {
	return r.style(r.formatter.FormatAll(errs))
}

// style colors message lines, context lines and carets differently.
func (r *ErrorRenderer) style(text string) string {
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i, line := range lines {
		switch {
		case line == "":
		case strings.TrimSpace(line) == "^":
			lines[i] = strings.TrimSuffix(line, "^") + errCaretStyle.Render("^")
		case strings.HasPrefix(line, contextIndent):
			lines[i] = contextIndent + errContextStyle.Render(line[len(contextIndent):])
		default:
			lines[i] = errorStyle.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}

// reportFailure prints a failure followed by a one-line summary. summary
// is used for errors that did not come from a pipeline stage.
func reportFailure(w io.Writer, err error, summary string) {
	renderer := NewErrorRenderer()
	_, _ = fmt.Fprintln(w, renderer.Render(err))
	_, _ = fmt.Fprintln(w)

	var validationErrors *pipeline.ValidationErrors
	var stageErr *pipeline.StageExecutionError
	switch {
	case stdErrors.As(err, &validationErrors):
		printError(w, fmt.Sprintf("%d validation error(s) found", len(validationErrors.Errors)))
	case stdErrors.As(err, &stageErr):
		printError(w, fmt.Sprintf("%s failed", stageErr.Stage))
	default:
		printError(w, summary)
	}
}

// reportCalculationErrors prints the per-account failures of a run.
func reportCalculationErrors(w io.Writer, errs []*pipeline.CalculationError) {
	all := make([]error, 0, len(errs))
	for _, e := range errs {
		all = append(all, e)
	}
	_, _ = fmt.Fprintln(w, NewErrorRenderer().RenderAll(all))
	_, _ = fmt.Fprintln(w)
	printError(w, fmt.Sprintf("%d calculation error(s)", len(errs)))
}

// CommandError carries the process exit status of a command that has
// already reported its failure on stderr.
type CommandError struct {
	code int
}

// NewCommandError returns a CommandError exiting with code.
func NewCommandError(code int) *CommandError {
	return &CommandError{code: code}
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// ExitCode is the status main passes to os.Exit.
func (e *CommandError) ExitCode() int {
	return e.code
}
