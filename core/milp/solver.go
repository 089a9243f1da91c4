package milp

// Status reports the outcome of a solve.
type Status int

const (
	NotSolved Status = iota
	Optimal
	Infeasible
	Unbounded
	NodeLimit
	TimeLimit
	Failed
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "Optimal"
	case Infeasible:
		return "Infeasible"
	case Unbounded:
		return "Unbounded"
	case NodeLimit:
		return "Node limit reached"
	case TimeLimit:
		return "Time limit reached"
	case Failed:
		return "Solver error"
	default:
		return "Not Solved"
	}
}

// Stats carries solver effort counters.
type Stats struct {
	Nodes    int `json:"nodes"`
	LPSolves int `json:"lp_solves"`
}

// Solution is the assignment returned by a Solver. Values is indexed by Var
// and only meaningful when Status is Optimal.
type Solution struct {
	Status    Status
	Objective float64
	Values    []float64
	Stats     Stats
}

// Value returns the assigned value of v.
func (s Solution) Value(v Var) float64 {
	if int(v) < 0 || int(v) >= len(s.Values) {
		return 0
	}
	return s.Values[v]
}

// Solver runs a MILP solve. Implementations report infeasibility and
// unboundedness through Solution.Status and reserve the error for internal
// failures.
type Solver interface {
	Solve(p *Problem) (Solution, error)
}

// SolverFunc adapts a function to the Solver interface.
type SolverFunc func(p *Problem) (Solution, error)

// Solve implements Solver.
func (f SolverFunc) Solve(p *Problem) (Solution, error) { return f(p) }
