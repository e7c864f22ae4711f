package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"

	"github.com/finmodel/finmodel/loader"
)

type InitCmd struct {
	File  string `help:"Model file to create." arg:"" optional:"" default:"model.yaml"`
	Force bool   `help:"Overwrite an existing file without asking." short:"f"`
}

func (cmd *InitCmd) Run(ctx *kong.Context, globals *Globals) error {
	path, err := filepath.Abs(cmd.File)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		overwrite := cmd.Force
		if !overwrite {
			confirmed, err := promptYesNo(fmt.Sprintf("File %q already exists. Overwrite it?", path))
			if err != nil {
				return fmt.Errorf("failed to read confirmation: %w", err)
			}
			overwrite = confirmed
		}
		if !overwrite {
			return fmt.Errorf("file already exists: %s (use --force to overwrite)", path)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to access file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(loader.SampleModel), 0o600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	printSuccess(ctx.Stdout, fmt.Sprintf("Created sample model %s", pathStyle.Render(path)))
	printInfof(ctx.Stdout, "Run %s to calculate it", pathStyle.Render("finmodel calc "+cmd.File))
	return nil
}
