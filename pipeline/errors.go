package pipeline

import (
	"fmt"
)

// ValidationError is a single structural problem found before calculation.
type ValidationError struct {
	AccountID string
	PeriodID  string
	Field     string
	Message   string
	Err       error // underlying parameter error, if any
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + " " + msg
	}
	switch {
	case e.AccountID != "":
		return fmt.Sprintf("account %q: %s", e.AccountID, msg)
	case e.PeriodID != "":
		return fmt.Sprintf("period %q: %s", e.PeriodID, msg)
	default:
		return msg
	}
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ValidationErrors wraps every validation error of a run.
type ValidationErrors struct {
	Errors []error
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d validation errors occurred", len(e.Errors))
}

// Unwrap returns the underlying errors for error unwrapping
func (e *ValidationErrors) Unwrap() []error {
	return e.Errors
}

// StageExecutionError is returned when a stage aborts the run.
type StageExecutionError struct {
	Stage string
	Err   error
}

func (e *StageExecutionError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageExecutionError) Unwrap() error {
	return e.Err
}

// CalculationError records an account that failed to evaluate in one
// period. The run continues with the account's value set to zero.
type CalculationError struct {
	AccountID string
	PeriodID  string
	Message   string
	Err       error
}

func (e *CalculationError) Error() string {
	return fmt.Sprintf("%s in %s: %s", e.AccountID, e.PeriodID, e.Message)
}

func (e *CalculationError) Unwrap() error {
	return e.Err
}
