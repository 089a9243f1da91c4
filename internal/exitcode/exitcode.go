// Package exitcode maps planner failures onto process exit codes.
package exitcode

import (
	"errors"
	"fmt"

	"github.com/kilianp07/hems/core/model"
	"github.com/kilianp07/hems/core/planner"
)

const (
	Success = 0
	// Input covers unreadable or malformed documents and invalid settings.
	Input = 1
	// Model covers horizons that cannot be turned into a model.
	Model = 2
	// Solve covers infeasible, unbounded and failed solves.
	Solve = 3
	// Sink covers failures to write or publish a finished schedule.
	Sink = 4
)

// ExitError attaches a process exit code to an error.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New wraps err with code. It returns nil when err is nil.
func New(err error, code int) error {
	if err == nil {
		return nil
	}
	return &ExitError{Code: code, Err: err}
}

// Newf formats a new error carrying code.
func Newf(code int, format string, args ...any) error {
	return &ExitError{
		Code: code,
		Err:  fmt.Errorf(format, args...),
	}
}

// GetCode returns the code of the first ExitError in the chain, or derives
// one from the sentinel errors of the model and planner packages.
func GetCode(err error) int {
	if err == nil {
		return Success
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	switch {
	case errors.Is(err, model.ErrInvalidHorizon):
		return Model
	case errors.Is(err, planner.ErrInfeasible), errors.Is(err, planner.ErrUnbounded), errors.Is(err, planner.ErrSolver):
		return Solve
	default:
		return Input
	}
}
