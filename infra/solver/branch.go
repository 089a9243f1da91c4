package solver

import (
	"math"
	"time"

	"github.com/kilianp07/hems/core/milp"
)

// roundingEvery is the node interval at which the rounding heuristic runs
// while no incumbent exists.
const roundingEvery = 64

// now is the search clock.
var now = time.Now

type node struct {
	lo, hi []float64
}

// search holds the state shared by the nodes of one branch and bound run.
type search struct {
	p         *milp.Problem
	base      []row
	cost      []float64
	sol       milp.Solution
	best      float64
	incumbent []float64
}

// branch runs a depth-first search, diving towards the nearer rounding of
// the most fractional binary first so an incumbent appears early.
func (s *BranchAndBound) branch(p *milp.Problem) (milp.Solution, error) {
	n := p.NumVars()
	sr := &search{
		p:    p,
		base: normalizeRows(p),
		cost: make([]float64, n),
		sol:  milp.Solution{Status: milp.Infeasible},
		best: math.Inf(1),
	}
	for v, c := range p.Objective().Coefficients() {
		sr.cost[v] = c
	}
	root := node{lo: make([]float64, n), hi: make([]float64, n)}
	for j, v := range p.Vars() {
		root.lo[j], root.hi[j] = v.Lower, v.Upper
	}

	deadline := now().Add(time.Duration(s.cfg.TimeLimitMS) * time.Millisecond)
	stack := []node{root}
	for len(stack) > 0 {
		if sr.sol.Stats.Nodes >= s.cfg.MaxNodes {
			s.log.Warnf("branch and bound stopped after %d nodes", sr.sol.Stats.Nodes)
			sr.sol.Status = milp.NodeLimit
			break
		}
		if now().After(deadline) {
			s.log.Warnf("branch and bound stopped after %d ms and %d nodes", s.cfg.TimeLimitMS, sr.sol.Stats.Nodes)
			sr.sol.Status = milp.TimeLimit
			break
		}
		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		sr.sol.Stats.Nodes++

		r, err := s.relax(p, sr.base, sr.cost, nd.lo, nd.hi)
		sr.sol.Stats.LPSolves++
		if err != nil {
			return sr.sol, err
		}
		switch r.status {
		case relaxInfeasible:
			continue
		case relaxUnbounded:
			if sr.sol.Stats.Nodes == 1 {
				sr.sol.Status = milp.Unbounded
				return sr.sol, nil
			}
			continue
		}
		if r.objective >= sr.best-s.pruneGap(sr.best) {
			continue
		}

		j := s.mostFractional(p, r.x)
		if j < 0 {
			sr.accept(r.x, r.objective)
			continue
		}
		if sr.incumbent == nil && (sr.sol.Stats.Nodes == 1 || sr.sol.Stats.Nodes%roundingEvery == 0) {
			if err := s.round(sr, nd, r.x); err != nil {
				return sr.sol, err
			}
			if r.objective >= sr.best-s.pruneGap(sr.best) {
				continue
			}
		}

		down := node{lo: clone(nd.lo), hi: clone(nd.hi)}
		down.hi[j] = 0
		up := node{lo: clone(nd.lo), hi: clone(nd.hi)}
		up.lo[j] = 1
		if r.x[j] >= 0.5 {
			stack = append(stack, down, up)
		} else {
			stack = append(stack, up, down)
		}
	}

	if sr.incumbent != nil {
		sr.sol.Values = sr.incumbent
		sr.sol.Objective = sr.best
	}
	return sr.sol, nil
}

// round fixes every binary of the node at the rounding of x and solves the
// remaining LP. A feasible outcome becomes the incumbent when it improves on
// the current one.
func (s *BranchAndBound) round(sr *search, nd node, x []float64) error {
	lo, hi := clone(nd.lo), clone(nd.hi)
	for j, v := range sr.p.Vars() {
		if v.Kind != milp.Binary {
			continue
		}
		r := math.Max(lo[j], math.Min(hi[j], math.Round(x[j])))
		lo[j], hi[j] = r, r
	}
	r, err := s.relax(sr.p, sr.base, sr.cost, lo, hi)
	sr.sol.Stats.LPSolves++
	if err != nil {
		return err
	}
	if r.status == relaxOptimal && r.objective < sr.best-s.pruneGap(sr.best) {
		s.log.Debugf("rounding heuristic found objective %g", r.objective)
		sr.accept(r.x, r.objective)
	}
	return nil
}

func (sr *search) accept(x []float64, objective float64) {
	for k, v := range sr.p.Vars() {
		if v.Kind == milp.Binary {
			x[k] = math.Round(x[k])
		}
	}
	sr.incumbent, sr.best = x, objective
	sr.sol.Status = milp.Optimal
}

// mostFractional returns the binary farthest from an integer, or -1 when the
// assignment is integral.
func (s *BranchAndBound) mostFractional(p *milp.Problem, x []float64) int {
	best, pick := s.cfg.IntegralityTolerance, -1
	for j, v := range p.Vars() {
		if v.Kind != milp.Binary {
			continue
		}
		if f := math.Abs(x[j] - math.Round(x[j])); f > best {
			best, pick = f, j
		}
	}
	return pick
}

func (s *BranchAndBound) pruneGap(best float64) float64 {
	if math.IsInf(best, 1) {
		return 0
	}
	return 1e-9 * math.Max(1, math.Abs(best))
}

func clone(v []float64) []float64 { return append([]float64(nil), v...) }
