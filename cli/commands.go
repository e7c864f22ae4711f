package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"

	"github.com/finmodel/finmodel/output"
	"github.com/finmodel/finmodel/telemetry"
)

var (
	Version   = ""
	CommitSHA = ""
)

// Globals defines global flags available to all commands.
type Globals struct {
	Telemetry bool   `help:"Show timing telemetry for operations."`
	LogLevel  string `help:"Log level (${enum})." enum:"debug,info,warn,error" default:"warn"`
}

type Commands struct {
	Globals

	Calc   CalcCmd   `cmd:"" help:"Calculate a model and print the results."`
	Check  CheckCmd  `cmd:"" help:"Validate a model and resolve its calculation order."`
	Order  OrderCmd  `cmd:"" help:"Print the calculation order of a model."`
	Doctor DoctorCmd `cmd:"" help:"Doctor utilities for debugging models."`
	Init   InitCmd   `cmd:"" help:"Write a sample model."`
	Serve  ServeCmd  `cmd:"" help:"Start the HTTP API for a model."`
}

// Logger returns a console logger writing to w at the configured level.
func (g *Globals) Logger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(g.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().
		Logger()
}

// startTelemetry installs a timing collector when --telemetry is set and
// returns the context to run with and a function reporting the timings.
// The report function is a no-op without --telemetry.
func startTelemetry(ctx *kong.Context, globals *Globals, name string) (context.Context, func()) {
	runCtx := context.Background()
	if !globals.Telemetry {
		return runCtx, func() {}
	}

	collector := telemetry.NewTimingCollector(telemetry.WithStyles(output.NewStyles(ctx.Stderr)))
	runCtx = telemetry.WithCollector(runCtx, collector)

	rootTimer := collector.Start(name)
	runCtx = telemetry.WithRootTimer(runCtx, rootTimer)

	return runCtx, func() {
		rootTimer.End()
		_, _ = fmt.Fprintln(ctx.Stderr)
		collector.Report(ctx.Stderr)
	}
}
