package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/alecthomas/kong"

	"github.com/finmodel/finmodel/loader"
	"github.com/finmodel/finmodel/model"
	"github.com/finmodel/finmodel/output"
	"github.com/finmodel/finmodel/pipeline"
	"github.com/finmodel/finmodel/web"
)

type CalcCmd struct {
	File       ModelFile `help:"Model file ('-' or omitted reads stdin)." arg:"" optional:""`
	Period     []string  `help:"Calculate only these periods, in the given order." short:"p" placeholder:"ID"`
	NoCf       bool      `help:"Skip cash-flow account generation." name:"no-cf"`
	NoValidate bool      `help:"Skip model validation."`
	JSON       bool      `help:"Print results as JSON." name:"json"`
	Places     int32     `help:"Decimal places shown in the grid." default:"2"`
}

func (cmd *CalcCmd) Run(ctx *kong.Context, globals *Globals) error {
	if err := cmd.File.resolve(); err != nil {
		return err
	}

	runCtx, reportTelemetry := startTelemetry(ctx, globals, fmt.Sprintf("calc %s", cmd.File.Name()))
	defer reportTelemetry()

	result, err := cmd.File.Load(runCtx, loader.New(loader.WithFollowIncludes()))
	if err != nil {
		reportFailure(ctx.Stderr, err, "failed to load model")
		return NewCommandError(1)
	}

	// A fresh pipeline has no cached structure, so every calc run is full.
	opts := pipeline.DefaultOptions()
	opts.EnableCfGeneration = !cmd.NoCf
	opts.EnableValidation = !cmd.NoValidate
	opts.TargetPeriods = cmd.Period

	p := pipeline.New(
		pipeline.WithSettings(result.Settings),
		pipeline.WithLogger(globals.Logger(ctx.Stderr)),
	)
	out, err := p.Run(runCtx, result.Input, opts)
	if err != nil {
		if cmd.JSON {
			return writeJSON(ctx, web.FailedResultsResponse(err), NewCommandError(1))
		}
		reportFailure(ctx.Stderr, err, "calculation failed")
		return NewCommandError(1)
	}

	if cmd.JSON {
		var failure error
		if len(out.CalculationErrors) > 0 {
			failure = NewCommandError(1)
		}
		return writeJSON(ctx, web.NewResultsResponse(out, result.Input.Parameters), failure)
	}

	columns, rows := resultGrid(out)
	grid := output.NewGrid(output.NewStyles(ctx.Stdout),
		output.WithPlaces(cmd.Places),
		output.WithMaxWidth(terminalWidth(ctx.Stdout)),
	)
	if err := grid.Render(ctx.Stdout, columns, rows); err != nil {
		return err
	}

	if len(out.CalculationErrors) > 0 {
		_, _ = fmt.Fprintln(ctx.Stderr)
		reportCalculationErrors(ctx.Stderr, out.CalculationErrors)
		return NewCommandError(1)
	}
	return nil
}

func writeJSON(ctx *kong.Context, v any, failure error) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(ctx.Stdout, string(data))
	return failure
}

// resultGrid lays out every account of out as a tree in display order,
// with one column per period.
func resultGrid(out *pipeline.Output) ([]string, []output.Row) {
	columns := make([]string, 0, len(out.Periods))
	for _, p := range out.Periods {
		columns = append(columns, p.Label())
	}

	failed := make(map[model.ValueKey]bool, len(out.CalculationErrors))
	for _, e := range out.CalculationErrors {
		failed[model.ValueKey{AccountID: e.AccountID, PeriodID: e.PeriodID}] = true
	}

	sorted := append([]model.Account(nil), out.Accounts...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order.Less(sorted[j].Order)
	})
	index := model.AccountIndex(sorted)
	children := model.ChildIndex(sorted)

	var rows []output.Row
	visited := make(map[string]bool, len(sorted))
	var visit func(a model.Account, depth int)
	visit = func(a model.Account, depth int) {
		if visited[a.ID] {
			return
		}
		visited[a.ID] = true

		label := a.Name
		if label == "" {
			label = a.ID
		}
		row := output.Row{Label: label, Depth: depth, Cells: make([]output.Cell, 0, len(out.Periods))}
		for _, p := range out.Periods {
			v, ok := out.FinancialValues.Get(a.ID, p.ID)
			row.Cells = append(row.Cells, output.Cell{
				Value:   v.Value,
				Failed:  failed[model.ValueKey{AccountID: a.ID, PeriodID: p.ID}],
				Missing: !ok,
			})
		}
		rows = append(rows, row)

		for _, id := range children[a.ID] {
			visit(index[id], depth+1)
		}
	}

	for _, a := range sorted {
		if _, ok := index[a.ParentID]; !ok {
			visit(a, 0)
		}
	}
	// Accounts caught in a parent cycle have no root; list them flat.
	for _, a := range sorted {
		visit(a, 0)
	}
	return columns, rows
}
