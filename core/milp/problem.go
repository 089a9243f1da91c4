package milp

import (
	"fmt"
	"math"
)

// Var is a handle into the variable arena of a Problem.
type Var int

// Kind distinguishes continuous from binary variables.
type Kind int

const (
	Continuous Kind = iota
	Binary
)

// VarInfo describes one decision variable.
type VarInfo struct {
	Name  string
	Lower float64
	Upper float64
	Kind  Kind
}

// Sense is the relation of a constraint row.
type Sense int

const (
	LE Sense = iota
	GE
	EQ
)

func (s Sense) String() string {
	switch s {
	case LE:
		return "<="
	case GE:
		return ">="
	default:
		return "=="
	}
}

// Constraint is a linear row Expr (sense) RHS. Constant terms in Expr are
// folded into RHS when the constraint is added.
type Constraint struct {
	Name  string
	Expr  Expr
	Sense Sense
	RHS   float64
}

// Problem is a minimisation MILP over non-negative, lower-bounded variables.
type Problem struct {
	Name        string
	vars        []VarInfo
	constraints []Constraint
	objective   Expr
}

// NewProblem returns an empty problem.
func NewProblem(name string) *Problem {
	return &Problem{Name: name}
}

// NewVar allocates a continuous variable with the given bounds. Use
// math.Inf(1) for an unbounded upper limit.
func (p *Problem) NewVar(name string, lower, upper float64) Var {
	p.vars = append(p.vars, VarInfo{Name: name, Lower: lower, Upper: upper, Kind: Continuous})
	return Var(len(p.vars) - 1)
}

// NewBinary allocates a {0,1} variable.
func (p *Problem) NewBinary(name string) Var {
	p.vars = append(p.vars, VarInfo{Name: name, Lower: 0, Upper: 1, Kind: Binary})
	return Var(len(p.vars) - 1)
}

// SetBounds replaces the bounds of v.
func (p *Problem) SetBounds(v Var, lower, upper float64) {
	p.vars[v].Lower = lower
	p.vars[v].Upper = upper
}

// AddConstraint appends expr (sense) rhs.
func (p *Problem) AddConstraint(name string, expr Expr, sense Sense, rhs float64) {
	e := expr.Clone()
	rhs -= e.Const
	e.Const = 0
	p.constraints = append(p.constraints, Constraint{Name: name, Expr: e, Sense: sense, RHS: rhs})
}

// SetObjective replaces the minimisation objective.
func (p *Problem) SetObjective(e Expr) { p.objective = e.Clone() }

// Objective returns the objective expression.
func (p *Problem) Objective() Expr { return p.objective }

// NumVars returns the size of the variable arena.
func (p *Problem) NumVars() int { return len(p.vars) }

// NumConstraints returns the number of rows.
func (p *Problem) NumConstraints() int { return len(p.constraints) }

// NumBinaries counts binary variables.
func (p *Problem) NumBinaries() int {
	n := 0
	for _, v := range p.vars {
		if v.Kind == Binary {
			n++
		}
	}
	return n
}

// VarInfo returns the metadata for v.
func (p *Problem) VarInfo(v Var) VarInfo { return p.vars[v] }

// Vars returns the variable arena. The slice must not be modified.
func (p *Problem) Vars() []VarInfo { return p.vars }

// Constraints returns all rows. The slice must not be modified.
func (p *Problem) Constraints() []Constraint { return p.constraints }

// Evaluate returns the objective value at x.
func (p *Problem) Evaluate(x []float64) float64 { return p.objective.Eval(x) }

// Check verifies bounds, integrality and every row at x within tol. It
// returns the first violation found.
func (p *Problem) Check(x []float64, tol float64) error {
	if len(x) != len(p.vars) {
		return fmt.Errorf("assignment has %d values for %d variables", len(x), len(p.vars))
	}
	for i, v := range p.vars {
		if x[i] < v.Lower-tol || x[i] > v.Upper+tol {
			return fmt.Errorf("%s=%g outside [%g, %g]", v.Name, x[i], v.Lower, v.Upper)
		}
		if v.Kind == Binary && math.Abs(x[i]-math.Round(x[i])) > tol {
			return fmt.Errorf("%s=%g is not integral", v.Name, x[i])
		}
	}
	for _, c := range p.constraints {
		lhs := c.Expr.Eval(x)
		scale := tol * math.Max(1, math.Abs(c.RHS))
		ok := true
		switch c.Sense {
		case LE:
			ok = lhs <= c.RHS+scale
		case GE:
			ok = lhs >= c.RHS-scale
		case EQ:
			ok = math.Abs(lhs-c.RHS) <= scale
		}
		if !ok {
			return fmt.Errorf("constraint %s violated: %g %s %g", c.Name, lhs, c.Sense, c.RHS)
		}
	}
	return nil
}
