package solver

import (
	"fmt"
	"math"

	"github.com/kilianp07/hems/core/milp"
	"gonum.org/v1/gonum/mat"
)

type relaxStatus int

const (
	relaxOptimal relaxStatus = iota
	relaxInfeasible
	relaxUnbounded
)

// relaxation is the LP optimum of one node, expressed over the full variable
// arena.
type relaxation struct {
	status    relaxStatus
	x         []float64
	objective float64
}

// relax solves the LP relaxation of p under the node bounds lo and hi.
//
// The reduced problem is shifted so every variable starts at zero and each
// inequality gets its own slack column. Upper bounds stay on the columns, so
// the tableau only carries the model's own rows.
func (s *BranchAndBound) relax(p *milp.Problem, base []row, cost, lo, hi []float64) (relaxation, error) {
	red, st := s.presolve(p, base, cost, lo, hi)
	switch st {
	case presolveInfeasible:
		return relaxation{status: relaxInfeasible}, nil
	case presolveUnbounded:
		return relaxation{status: relaxUnbounded}, nil
	}

	x := make([]float64, p.NumVars())
	for j := range x {
		if red.fixed[j] {
			x[j] = red.value[j]
		}
	}
	if len(red.active) == 0 {
		return relaxation{status: relaxOptimal, x: x, objective: p.Evaluate(x)}, nil
	}

	col := make(map[milp.Var]int, len(red.active))
	for k, v := range red.active {
		col[v] = k
	}
	nSlack := 0
	for _, rw := range red.rows {
		if rw.sense != milp.EQ {
			nSlack++
		}
	}

	m := len(red.rows)
	n := len(red.active) + nSlack
	lpp := boundedLP{
		c: make([]float64, n),
		b: make([]float64, m),
		u: make([]float64, n),
	}
	if m > 0 {
		lpp.A = mat.NewDense(m, n, nil)
	}
	for k, v := range red.active {
		lpp.c[k] = cost[v]
		lpp.u[k] = red.hi[v] - red.lo[v]
	}

	slack := len(red.active)
	for i, rw := range red.rows {
		rhs := rw.rhs
		for _, t := range rw.terms {
			lpp.A.Set(i, col[t.Var], t.Coef)
			rhs -= t.Coef * red.lo[t.Var]
		}
		switch rw.sense {
		case milp.LE:
			lpp.A.Set(i, slack, 1)
		case milp.GE:
			lpp.A.Set(i, slack, -1)
		}
		if rw.sense != milp.EQ {
			lpp.u[slack] = math.Inf(1)
			slack++
		}
		lpp.b[i] = rhs
	}

	status, y, err := lpSolve(lpp, s.cfg.Tolerance)
	if err != nil {
		return relaxation{}, fmt.Errorf("simplex: %w", err)
	}
	switch status {
	case relaxInfeasible, relaxUnbounded:
		return relaxation{status: status}, nil
	}

	for k, v := range red.active {
		val := y[k] + red.lo[v]
		x[v] = min(red.hi[v], max(red.lo[v], val))
	}
	return relaxation{status: relaxOptimal, x: x, objective: p.Evaluate(x)}, nil
}
