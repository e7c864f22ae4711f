package cli

import (
	"bytes"
	stdErrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/finmodel/finmodel/dependency"
	"github.com/finmodel/finmodel/formula"
	"github.com/finmodel/finmodel/pipeline"
)

func TestErrorRenderer_RenderParseErrorWithFormulaContext(t *testing.T) {
	parseErr := &formula.ParseError{
		Text:    "sales * (1 + ",
		Pos:     13,
		Message: "unexpected end of formula",
	}
	err := &pipeline.CalculationError{AccountID: "net_income", PeriodID: "2025", Message: parseErr.Error(), Err: parseErr}

	output := NewErrorRenderer().Render(err)

	assert.Contains(t, output, "net_income")
	assert.Contains(t, output, "unexpected end of formula")

	lines := strings.Split(output, "\n")
	foundFormula, foundCaret := false, false
	for i, line := range lines {
		if strings.HasPrefix(line, "   ") && strings.Contains(line, "sales * (1 + ") {
			foundFormula = true
			assert.True(t, i+1 < len(lines), "expected caret line after formula")
			assert.Equal(t, 3+13, strings.Index(lines[i+1], "^"))
			foundCaret = true
		}
	}
	assert.True(t, foundFormula, "Expected indented formula line")
	assert.True(t, foundCaret, "Expected caret line")
}

func TestErrorRenderer_RenderCycle(t *testing.T) {
	err := &pipeline.StageExecutionError{
		Stage: pipeline.StageResolveDependencies,
		Err:   &dependency.CircularDependencyError{AccountIDs: []string{"a", "b"}},
	}

	output := NewErrorRenderer().Render(err)

	assert.Contains(t, output, "circular dependency among 2 account(s)")
	assert.Contains(t, output, "\n   a\n   b")
}

func TestErrorRenderer_RenderAll(t *testing.T) {
	errs := []error{
		&pipeline.ValidationError{AccountID: "a", Field: "parent", Message: "unknown parent"},
		&pipeline.ValidationError{AccountID: "b", Field: "parameter", Message: "missing base"},
	}

	output := NewErrorRenderer().RenderAll(errs)

	assert.Contains(t, output, "unknown parent")
	assert.Contains(t, output, "missing base")
	assert.Equal(t, 2, len(strings.Split(output, "\n\n")))
}

func TestErrorRenderer_RenderAllEmpty(t *testing.T) {
	assert.Equal(t, "", NewErrorRenderer().RenderAll(nil))
}

func TestReportFailure(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		summary string
	}{
		{
			name: "Validation",
			err: &pipeline.StageExecutionError{
				Stage: pipeline.StageValidate,
				Err: &pipeline.ValidationErrors{Errors: []error{
					&pipeline.ValidationError{AccountID: "a", Field: "parent", Message: "unknown parent"},
				}},
			},
			summary: "1 validation error(s) found",
		},
		{
			name: "Stage",
			err: &pipeline.StageExecutionError{
				Stage: pipeline.StageResolveDependencies,
				Err:   &dependency.CircularDependencyError{AccountIDs: []string{"a", "b"}},
			},
			summary: "resolve-dependencies failed",
		},
		{
			name:    "Other",
			err:     &formula.ParseError{Text: "1 +", Pos: 3, Message: "unexpected end of formula"},
			summary: "parse error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			reportFailure(&buf, tt.err, "parse error")
			assert.Contains(t, buf.String(), tt.summary)
		})
	}
}

func TestCommandError(t *testing.T) {
	var err error = NewCommandError(3)
	assert.EqualError(t, err, "exit status 3")

	var cmdErr *CommandError
	assert.True(t, stdErrors.As(fmt.Errorf("wrapped: %w", err), &cmdErr))
	assert.Equal(t, 3, cmdErr.ExitCode())
}
