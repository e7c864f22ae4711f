package cli

import (
	"fmt"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/alecthomas/repr"
	"github.com/shopspring/decimal"

	"github.com/finmodel/finmodel/formula"
)

// DoctorCmd provides doctor utilities for debugging models.
type DoctorCmd struct {
	Formula   FormulaCmd   `cmd:"" help:"Show the parse tree and dependencies of a formula."`
	Functions FunctionsCmd `cmd:"" help:"List the functions available in formulas."`
}

// FormulaCmd parses a formula and dumps its tree.
type FormulaCmd struct {
	Expr string   `help:"Formula to parse." arg:""`
	Var  []string `help:"Bind a variable and evaluate the formula." short:"v" placeholder:"NAME=VALUE"`
}

// Run executes the formula command.
func (cmd *FormulaCmd) Run(ctx *kong.Context, globals *Globals) error {
	tree, err := formula.Parse(cmd.Expr)
	if err != nil {
		reportFailure(ctx.Stderr, err, "parse error")
		return NewCommandError(1)
	}

	_, _ = fmt.Fprintln(ctx.Stdout, repr.String(tree.Root, repr.Indent("  ")))
	deps := formula.Dependencies(tree)
	_, _ = fmt.Fprintf(ctx.Stdout, "dependencies: %s\n", strings.Join(deps, ", "))

	// Formulas without identifiers are evaluated right away.
	if len(cmd.Var) == 0 && len(deps) > 0 {
		return nil
	}

	vars := make(formula.Variables, len(cmd.Var))
	for _, binding := range cmd.Var {
		name, value, ok := strings.Cut(binding, "=")
		if !ok {
			return fmt.Errorf("invalid variable %q, expected NAME=VALUE", binding)
		}
		d, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", name, err)
		}
		vars[strings.TrimSpace(name)] = d
	}

	result, err := formula.Evaluate(tree, vars)
	if err != nil {
		reportFailure(ctx.Stderr, err, "evaluation error")
		return NewCommandError(1)
	}
	_, _ = fmt.Fprintf(ctx.Stdout, "value: %s\n", result)
	return nil
}

// FunctionsCmd lists the built-in formula functions.
type FunctionsCmd struct{}

// Run executes the functions command.
func (cmd *FunctionsCmd) Run(ctx *kong.Context) error {
	for _, name := range formula.Functions() {
		_, _ = fmt.Fprintln(ctx.Stdout, name)
	}
	return nil
}
