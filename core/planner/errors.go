package planner

import "errors"

var (
	// ErrInfeasible is returned when no schedule satisfies the hard limits.
	ErrInfeasible = errors.New("model infeasible")
	// ErrUnbounded is returned when the objective can decrease without limit.
	ErrUnbounded = errors.New("model unbounded")
	// ErrSolver wraps internal solver failures, including exhausted node
	// budgets.
	ErrSolver = errors.New("solver failure")
)
