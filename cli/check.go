package cli

import (
	"fmt"

	"github.com/alecthomas/kong"

	"github.com/finmodel/finmodel/loader"
	"github.com/finmodel/finmodel/pipeline"
)

type CheckCmd struct {
	File ModelFile `help:"Model file ('-' or omitted reads stdin)." arg:"" optional:""`
	NoCf bool      `help:"Skip cash-flow account generation." name:"no-cf"`
}

func (cmd *CheckCmd) Run(ctx *kong.Context, globals *Globals) error {
	out, err := checkModel(ctx, globals, &cmd.File, "check", cmd.NoCf)
	if err != nil {
		return err
	}

	printSuccess(ctx.Stdout, fmt.Sprintf("Check passed: %d accounts (%d cash-flow), %d periods",
		len(out.Accounts), len(out.CfGeneratedAccounts), len(out.Periods)))
	return nil
}

type OrderCmd struct {
	File ModelFile `help:"Model file ('-' or omitted reads stdin)." arg:"" optional:""`
	NoCf bool      `help:"Skip cash-flow account generation." name:"no-cf"`
}

func (cmd *OrderCmd) Run(ctx *kong.Context, globals *Globals) error {
	out, err := checkModel(ctx, globals, &cmd.File, "order", cmd.NoCf)
	if err != nil {
		return err
	}

	width := len(fmt.Sprint(len(out.SortedAccountIDs)))
	for i, id := range out.SortedAccountIDs {
		_, _ = fmt.Fprintf(ctx.Stdout, "%*d  %s\n", width, i+1, id)
	}
	return nil
}

// checkModel loads file and runs the structural stages over it. Failures
// are reported on stderr and returned as a CommandError.
func checkModel(ctx *kong.Context, globals *Globals, file *ModelFile, name string, noCf bool) (*pipeline.Output, error) {
	if err := file.resolve(); err != nil {
		return nil, err
	}

	runCtx, reportTelemetry := startTelemetry(ctx, globals, fmt.Sprintf("%s %s", name, file.Name()))
	defer reportTelemetry()

	result, err := file.Load(runCtx, loader.New(loader.WithFollowIncludes()))
	if err != nil {
		reportFailure(ctx.Stderr, err, "failed to load model")
		return nil, NewCommandError(1)
	}

	opts := pipeline.DefaultOptions()
	opts.EnableCfGeneration = !noCf

	p := pipeline.New(
		pipeline.WithSettings(result.Settings),
		pipeline.WithLogger(globals.Logger(ctx.Stderr)),
	)
	out, err := p.Check(runCtx, result.Input, opts)
	if err != nil {
		reportFailure(ctx.Stderr, err, "check failed")
		return nil, NewCommandError(1)
	}
	return out, nil
}
