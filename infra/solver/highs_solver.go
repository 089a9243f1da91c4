package solver

import (
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/hems/core/milp"
	"github.com/kilianp07/hems/infra/logger"
)

// highsCheckTolerance is the row and bound slack accepted on a HiGHS
// assignment after binaries are snapped to {0,1}.
const highsCheckTolerance = 1e-6

// HiGHS implements milp.Solver on top of the HiGHS MIP solver.
//
// The binding returns a primal column vector but no model status, so every
// assignment is checked against the problem. When the check fails the
// problem goes to the branch and bound fallback, which settles whether it is
// infeasible, unbounded or just numerically awkward.
type HiGHS struct {
	cfg      Config
	log      logger.Logger
	fallback *BranchAndBound
}

// NewHiGHS returns a HiGHS-backed solver. cfg tunes the fallback search.
func NewHiGHS(cfg Config, log logger.Logger) *HiGHS {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NopLogger{}
	}
	return &HiGHS{cfg: cfg, log: log, fallback: New(cfg, log)}
}

// Solve implements milp.Solver.
func (h *HiGHS) Solve(p *milp.Problem) (milp.Solution, error) {
	if p.NumVars() == 0 || p.NumConstraints() == 0 {
		return h.fallback.Solve(p)
	}

	start := time.Now()
	cost, bounds, rows, integrality := highsModel(p)
	x, err := runHighs(cost, bounds, rows, integrality)
	if err != nil {
		return milp.Solution{Status: milp.Failed}, fmt.Errorf("highs: %w", err)
	}

	if len(x) == p.NumVars() {
		snap(p, x)
		cerr := p.Check(x, highsCheckTolerance)
		if cerr == nil {
			sol := milp.Solution{Status: milp.Optimal, Objective: p.Evaluate(x), Values: x}
			h.log.Debugw("milp solved", map[string]any{
				"problem":   p.Name,
				"backend":   BackendHiGHS,
				"objective": sol.Objective,
				"elapsed":   time.Since(start).String(),
			})
			return sol, nil
		}
		h.log.Debugf("highs assignment rejected: %v", cerr)
	}
	h.log.Warnf("highs returned no usable assignment for %s, retrying with branch and bound", p.Name)
	return h.fallback.Solve(p)
}

// highsModel lays p out the way the binding takes it: one cost and one
// [lower, upper] pair per column, and dense rows of the form
// [lower, a_1 .. a_n, upper].
func highsModel(p *milp.Problem) (cost []float64, bounds [][2]float64, rows [][]float64, integrality []int) {
	vars := p.Vars()
	n := len(vars)
	cost = make([]float64, n)
	for v, c := range p.Objective().Coefficients() {
		cost[v] = c
	}
	bounds = make([][2]float64, n)
	binaries := false
	for j, v := range vars {
		bounds[j] = [2]float64{v.Lower, v.Upper}
		if v.Kind == milp.Binary {
			binaries = true
		}
	}
	if binaries {
		integrality = make([]int, n)
		for j, v := range vars {
			if v.Kind == milp.Binary {
				integrality[j] = 1
			}
		}
	} else {
		integrality = []int{}
	}

	for _, r := range normalizeRows(p) {
		dense := make([]float64, n+2)
		for _, t := range r.terms {
			dense[1+int(t.Var)] = t.Coef
		}
		lo, hi := math.Inf(-1), math.Inf(1)
		switch r.sense {
		case milp.LE:
			hi = r.rhs
		case milp.GE:
			lo = r.rhs
		case milp.EQ:
			lo, hi = r.rhs, r.rhs
		}
		dense[0], dense[n+1] = lo, hi
		rows = append(rows, dense)
	}
	return cost, bounds, rows, integrality
}

// snap clamps x into the column bounds and rounds binaries.
func snap(p *milp.Problem, x []float64) {
	for j, v := range p.Vars() {
		x[j] = math.Max(v.Lower, math.Min(v.Upper, x[j]))
		if v.Kind == milp.Binary {
			x[j] = math.Round(x[j])
		}
	}
}
