// Package cli implements the finmodel commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/finmodel/finmodel/loader"
)

var (
	successSymbol = "✓"
	errorSymbol   = "✗"
	infoSymbol    = "→"

	successStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00D787", Dark: "#00D787"})
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#FF5F87", Dark: "#FF5F87"})
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#5FAFFF", Dark: "#5FAFFF"})
	pathStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00D7D7", Dark: "#00D7D7"})
)

func printSuccess(w io.Writer, message string) {
	_, _ = fmt.Fprintf(w, "%s %s\n",
		successStyle.Render(successSymbol),
		message,
	)
}

func printError(w io.Writer, message string) {
	_, _ = fmt.Fprintf(w, "%s %s\n",
		errorStyle.Render(errorSymbol),
		errorStyle.Render(message),
	)
}

func printInfof(w io.Writer, format string, args ...interface{}) {
	formatted := fmt.Sprintf(format, args...)
	_, _ = fmt.Fprintf(w, "%s %s\n",
		infoStyle.Render(infoSymbol),
		formatted,
	)
}

// promptYesNo asks question and answers no when stdin is not a terminal.
func promptYesNo(question string) (bool, error) {
	if !isTerminal(os.Stdin) {
		return false, nil
	}

	var confirm bool

	form := huh.NewConfirm().
		Title(question).
		WithButtonAlignment(lipgloss.Left).
		Value(&confirm)

	err := form.Run()
	if err != nil {
		return false, fmt.Errorf("failed to read response: %w", err)
	}

	return confirm, nil
}

// isTerminal reports whether w is a terminal. Buffers never are.
func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// terminalWidth returns the width of w, or 0 when w is not a terminal.
func terminalWidth(w io.Writer) int {
	if !isTerminal(w) {
		return 0
	}
	width, _, err := term.GetSize(int(w.(*os.File).Fd()))
	if err != nil {
		return 0
	}
	return width
}

// ModelFile is a model path argument. "-" or an omitted argument reads
// the model from stdin.
type ModelFile struct {
	Path string
	Data []byte // stdin contents; nil for files
}

// Decode implements kong.MapperValue.
func (m *ModelFile) Decode(ctx *kong.DecodeContext) error {
	var path string
	if err := ctx.Scan.PopValueInto("filename", &path); err != nil {
		return err
	}
	if path == "" || path == "-" {
		return m.slurpStdin()
	}
	if _, err := os.Stat(path); err != nil {
		return err
	}
	m.Path, m.Data = path, nil
	return nil
}

// resolve reads stdin when no path was given on the command line.
func (m *ModelFile) resolve() error {
	if m.Path != "" {
		return nil
	}
	return m.slurpStdin()
}

func (m *ModelFile) slurpStdin() error {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("failed to read from stdin: %w", err)
	}
	m.Path, m.Data = loader.StdinFilename, data
	return nil
}

func (m *ModelFile) fromStdin() bool {
	return m.Path == loader.StdinFilename
}

// Name is the base name shown in telemetry.
func (m *ModelFile) Name() string {
	return filepath.Base(m.Path)
}

// Load reads and decodes the model with ldr.
func (m *ModelFile) Load(ctx context.Context, ldr *loader.Loader) (*loader.Result, error) {
	if m.fromStdin() {
		return ldr.LoadBytes(ctx, m.Path, m.Data)
	}
	abs, err := filepath.Abs(m.Path)
	if err != nil {
		abs = m.Path
	}
	return ldr.Load(ctx, abs)
}
