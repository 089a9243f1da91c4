package solver

import (
	"math"
	"sort"

	"github.com/kilianp07/hems/core/milp"
)

// coefEpsilon drops coefficients that would create numerically empty
// columns in the simplex tableau.
const coefEpsilon = 1e-12

type row struct {
	name  string
	terms []milp.Term
	sense milp.Sense
	rhs   float64
}

// reduced is the LP left after presolve: rows over the unfixed variables plus
// the values of every fixed variable.
type reduced struct {
	lo, hi []float64
	fixed  []bool
	value  []float64
	rows   []row
	active []milp.Var
}

type presolveStatus int

const (
	presolveOK presolveStatus = iota
	presolveInfeasible
	presolveUnbounded
)

// normalizeRows merges duplicate variables and orders terms by variable so
// the tableau is built deterministically.
func normalizeRows(p *milp.Problem) []row {
	cons := p.Constraints()
	rows := make([]row, 0, len(cons))
	for _, c := range cons {
		coefs := c.Expr.Coefficients()
		terms := make([]milp.Term, 0, len(coefs))
		for v, a := range coefs {
			if math.Abs(a) > coefEpsilon {
				terms = append(terms, milp.Term{Var: v, Coef: a})
			}
		}
		sort.Slice(terms, func(i, j int) bool { return terms[i].Var < terms[j].Var })
		rows = append(rows, row{name: c.Name, terms: terms, sense: c.Sense, rhs: c.RHS})
	}
	return rows
}

// presolve fixes variables and drops rows until nothing changes. It removes
// empty rows and zero columns, which the simplex implementation rejects.
func (s *BranchAndBound) presolve(p *milp.Problem, base []row, cost []float64, lo, hi []float64) (*reduced, presolveStatus) {
	n := p.NumVars()
	vars := p.Vars()
	tol := s.cfg.Tolerance
	itol := s.cfg.IntegralityTolerance

	r := &reduced{
		lo:    append([]float64(nil), lo...),
		hi:    append([]float64(nil), hi...),
		fixed: make([]bool, n),
		value: make([]float64, n),
	}
	rows := make([]row, len(base))
	copy(rows, base)
	live := make([]bool, len(rows))
	for i := range live {
		live[i] = true
	}

	fix := func(j int, v float64) bool {
		if v < r.lo[j]-tol || v > r.hi[j]+tol {
			return false
		}
		if vars[j].Kind == milp.Binary {
			if math.Abs(v-math.Round(v)) > itol {
				return false
			}
			v = math.Round(v)
		}
		v = math.Max(r.lo[j], math.Min(r.hi[j], v))
		r.fixed[j] = true
		r.value[j] = v
		return true
	}

	for changed := true; changed; {
		changed = false

		for j := 0; j < n; j++ {
			if r.fixed[j] {
				continue
			}
			if vars[j].Kind == milp.Binary {
				r.lo[j] = math.Ceil(r.lo[j] - itol)
				r.hi[j] = math.Floor(r.hi[j] + itol)
			}
			if r.lo[j] > r.hi[j]+tol {
				return nil, presolveInfeasible
			}
			if r.hi[j]-r.lo[j] <= tol {
				fix(j, r.lo[j])
				changed = true
			}
		}

		for i := range rows {
			if !live[i] {
				continue
			}
			rw := rows[i]
			terms := rw.terms[:0:0]
			rhs := rw.rhs
			for _, t := range rw.terms {
				if r.fixed[t.Var] {
					rhs -= t.Coef * r.value[t.Var]
					continue
				}
				terms = append(terms, t)
			}
			rows[i].terms, rows[i].rhs = terms, rhs

			switch len(terms) {
			case 0:
				if !satisfied(0, rw.sense, rhs, tol*math.Max(1, math.Abs(rhs))) {
					return nil, presolveInfeasible
				}
				live[i] = false
				changed = true
			case 1:
				t := terms[0]
				j := int(t.Var)
				bound := rhs / t.Coef
				sense := rw.sense
				if t.Coef < 0 && sense != milp.EQ {
					sense = flip(sense)
				}
				switch sense {
				case milp.EQ:
					if !fix(j, bound) {
						return nil, presolveInfeasible
					}
				case milp.LE:
					r.hi[j] = math.Min(r.hi[j], bound)
				case milp.GE:
					r.lo[j] = math.Max(r.lo[j], bound)
				}
				live[i] = false
				changed = true
			}
		}
	}

	used := make([]bool, n)
	for i, rw := range rows {
		if !live[i] {
			continue
		}
		r.rows = append(r.rows, rw)
		for _, t := range rw.terms {
			used[t.Var] = true
		}
	}
	for j := 0; j < n; j++ {
		if r.fixed[j] {
			continue
		}
		if used[j] {
			r.active = append(r.active, milp.Var(j))
			continue
		}
		// A free-standing column sits at whichever bound its cost prefers.
		switch {
		case cost[j] >= 0:
			fix(j, r.lo[j])
		case !math.IsInf(r.hi[j], 1):
			fix(j, r.hi[j])
		default:
			return nil, presolveUnbounded
		}
	}
	return r, presolveOK
}

func satisfied(lhs float64, sense milp.Sense, rhs, tol float64) bool {
	switch sense {
	case milp.LE:
		return lhs <= rhs+tol
	case milp.GE:
		return lhs >= rhs-tol
	default:
		return math.Abs(lhs-rhs) <= tol
	}
}

func flip(s milp.Sense) milp.Sense {
	switch s {
	case milp.LE:
		return milp.GE
	case milp.GE:
		return milp.LE
	default:
		return s
	}
}
