package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/finmodel/finmodel/web"
)

type ServeCmd struct {
	File     string `help:"Model file to serve." arg:""`
	Port     int    `help:"Port to listen on." default:"8080"`
	Watch    bool   `help:"Reload and recalculate when the model file changes." short:"w"`
	ReadOnly bool   `help:"Enable read-only mode (no value updates allowed)." short:"r"`
}

func (cmd *ServeCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx, reportTelemetry := startTelemetry(ctx, globals, fmt.Sprintf("serve %s", filepath.Base(cmd.File)))
	defer reportTelemetry()

	runCtx, stop := signal.NotifyContext(runCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	modelFile, err := filepath.Abs(cmd.File)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	if _, err := os.Stat(modelFile); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file does not exist: %s (create one with finmodel init)", modelFile)
		}
		return fmt.Errorf("failed to access file: %w", err)
	}

	version := Version
	if version == "" {
		version = "dev"
	}
	commitSHA := CommitSHA
	if commitSHA == "" {
		commitSHA = "local"
	}

	server := web.NewWithVersion(cmd.Port, modelFile, version, commitSHA)
	server.ReadOnly = cmd.ReadOnly
	server.WatchEnabled = cmd.Watch
	server.Logger = globals.Logger(ctx.Stderr)

	printInfof(ctx.Stdout, "Starting server on %s:%d", server.Host, cmd.Port)
	printInfof(ctx.Stdout, "Serving model: %s", pathStyle.Render(modelFile))

	if cmd.ReadOnly {
		printInfof(ctx.Stdout, "Server running in READ-ONLY mode")
	}
	if cmd.Watch {
		printInfof(ctx.Stdout, "Watching model files for changes")
	}

	return server.Start(runCtx)
}
