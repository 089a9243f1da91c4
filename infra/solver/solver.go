// Package solver adapts MILP engines to milp.Solver. HiGHS is the default
// backend. BranchAndBound is a pure-Go fallback: depth-first branch and bound
// over a bounded-variable simplex, with a small presolve that keeps the
// tableau free of empty rows and columns.
package solver

import (
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/hems/core/milp"
	"github.com/kilianp07/hems/infra/logger"
)

// Backends accepted by Config.Backend.
const (
	BackendHiGHS          = "highs"
	BackendBranchAndBound = "branch_and_bound"
)

// Config selects the backend and tunes the search.
type Config struct {
	// Backend is BackendHiGHS or BackendBranchAndBound.
	Backend string `json:"backend"`
	// Tolerance is handed to the simplex and used for bound checks.
	Tolerance float64 `json:"tolerance"`
	// IntegralityTolerance decides when a binary counts as integral.
	IntegralityTolerance float64 `json:"integrality_tolerance"`
	// MaxNodes caps the number of explored nodes. The search stops with
	// milp.NodeLimit when it is reached.
	MaxNodes int `json:"max_nodes"`
	// TimeLimitMS caps the wall time of a branch and bound search. The
	// search stops with milp.TimeLimit when it runs out.
	TimeLimitMS int `json:"time_limit_ms"`
}

// SetDefaults fills zero fields.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = BackendHiGHS
	}
	if c.Tolerance <= 0 {
		c.Tolerance = 1e-7
	}
	if c.IntegralityTolerance <= 0 {
		c.IntegralityTolerance = 1e-6
	}
	if c.MaxNodes <= 0 {
		c.MaxNodes = 10000
	}
	if c.TimeLimitMS <= 0 {
		c.TimeLimitMS = 60000
	}
}

// Validate rejects unknown backends and tolerances that would make the
// search meaningless.
func (c Config) Validate() error {
	switch c.Backend {
	case "", BackendHiGHS, BackendBranchAndBound:
	default:
		return fmt.Errorf("unknown solver backend %q", c.Backend)
	}
	if c.IntegralityTolerance >= 0.5 {
		return fmt.Errorf("integrality_tolerance must be < 0.5, got %g", c.IntegralityTolerance)
	}
	if c.MaxNodes < 0 {
		return fmt.Errorf("max_nodes must be >= 0, got %d", c.MaxNodes)
	}
	if c.TimeLimitMS < 0 {
		return fmt.Errorf("time_limit_ms must be >= 0, got %d", c.TimeLimitMS)
	}
	return nil
}

// NewSolver returns the backend cfg selects. A binary built with the nohighs
// tag has no HiGHS and falls back to branch and bound with a warning.
func NewSolver(cfg Config, log logger.Logger) (milp.Solver, error) {
	if log == nil {
		log = logger.NopLogger{}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Backend == BackendHiGHS {
		if highsAvailable {
			return NewHiGHS(cfg, log), nil
		}
		log.Warnf("HiGHS is not compiled in, using the branch and bound fallback")
	}
	return New(cfg, log), nil
}

// BranchAndBound implements milp.Solver.
type BranchAndBound struct {
	cfg Config
	log logger.Logger
}

// New returns a solver using cfg with defaults applied.
func New(cfg Config, log logger.Logger) *BranchAndBound {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NopLogger{}
	}
	return &BranchAndBound{cfg: cfg, log: log}
}

// Solve implements milp.Solver. Infeasible and unbounded problems are
// reported through the status; the error is reserved for numerical failures.
func (s *BranchAndBound) Solve(p *milp.Problem) (milp.Solution, error) {
	for _, v := range p.Vars() {
		if math.IsInf(v.Lower, -1) || math.IsNaN(v.Lower) {
			return milp.Solution{Status: milp.Failed}, fmt.Errorf("variable %s has no finite lower bound", v.Name)
		}
	}

	start := time.Now()
	sol, err := s.branch(p)
	if err != nil {
		sol.Status = milp.Failed
		return sol, err
	}
	if sol.Values != nil {
		sol.Objective = p.Evaluate(sol.Values)
	}
	s.log.Debugw("milp solved", map[string]any{
		"problem":   p.Name,
		"status":    sol.Status.String(),
		"objective": sol.Objective,
		"nodes":     sol.Stats.Nodes,
		"lp_solves": sol.Stats.LPSolves,
		"elapsed":   time.Since(start).String(),
	})
	return sol, nil
}
