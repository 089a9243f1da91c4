package planner

import (
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/hems/core/logger"
	"github.com/kilianp07/hems/core/milp"
	"github.com/kilianp07/hems/core/model"
)

// checkTolerance is the slack allowed when re-checking a solver assignment
// against the model rows.
const checkTolerance = 1e-5

// Planner builds, solves and extracts one schedule per call.
type Planner struct {
	solver milp.Solver
	log    logger.Logger

	mu          sync.Mutex
	formulation model.Formulation
}

// New returns a Planner backed by the given solver. A nil logger discards
// output.
func New(solver milp.Solver, log logger.Logger) *Planner {
	if log == nil {
		log = nopLogger{}
	}
	return &Planner{solver: solver, log: log}
}

// SetFormulation overrides the formulation chosen by the configuration of
// every subsequent call. An empty value removes the override.
func (p *Planner) SetFormulation(f model.Formulation) {
	p.mu.Lock()
	p.formulation = f
	p.mu.Unlock()
}

// Formulation returns the override set with SetFormulation.
func (p *Planner) Formulation() model.Formulation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.formulation
}

// Plan computes a cost-optimal schedule. Solve failures return a Result with
// IsOptimal unset, the solver status and no slots, together with an error
// wrapping ErrInfeasible, ErrUnbounded or ErrSolver. An assignment that
// violates a bound or row of the model counts as a solver failure.
func (p *Planner) Plan(cfg model.Config, in model.Input) (model.Result, error) {
	in.Slots = append([]model.Slot(nil), in.Slots...)
	in.Normalize()
	if len(in.Slots) == 0 {
		p.log.Infof("no slots to schedule")
		return model.Result{Slots: []model.ResultSlot{}, IsOptimal: true, StatusMsg: "No slots to schedule"}, nil
	}

	p.mu.Lock()
	if p.formulation != "" {
		cfg.Formulation = p.formulation
	}
	p.mu.Unlock()

	m, err := Build(cfg, in)
	if err != nil {
		return model.Result{}, fmt.Errorf("build model: %w", err)
	}
	p.log.Debugw("model built", map[string]any{
		"slots":       len(in.Slots),
		"slot_hours":  m.SlotHours,
		"variables":   m.Problem.NumVars(),
		"constraints": m.Problem.NumConstraints(),
		"binaries":    m.Problem.NumBinaries(),
		"formulation": string(cfg.Formulation),
	})
	if len(m.IgnoredForcedSlots) > 0 {
		p.log.Warnf("ignoring forced heater slots outside the horizon: %v", m.IgnoredForcedSlots)
	}

	start := time.Now()
	sol, err := p.solver.Solve(m.Problem)
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0
	if err != nil {
		p.log.Errorf("solver failed: %v", err)
		return model.Result{StatusMsg: milp.Failed.String(), SolveTimeMS: elapsed},
			fmt.Errorf("%w: %v", ErrSolver, err)
	}

	if sol.Status != milp.Optimal {
		res := model.Result{StatusMsg: sol.Status.String(), SolveTimeMS: elapsed}
		p.log.Warnf("solve finished with status %s after %.1f ms", sol.Status, elapsed)
		return res, statusError(sol.Status)
	}
	if err := m.Problem.Check(sol.Values, checkTolerance); err != nil {
		p.log.Errorf("solver reported %s but the assignment is invalid: %v", sol.Status, err)
		return model.Result{StatusMsg: milp.Failed.String(), SolveTimeMS: elapsed},
			fmt.Errorf("%w: %v", ErrSolver, err)
	}

	res := m.Extract(sol)
	res.SolveTimeMS = elapsed
	p.log.Infof("planned %d slots: total %.4f SEK in %.1f ms (%d nodes)",
		len(res.Slots), res.TotalCostSEK, elapsed, sol.Stats.Nodes)
	return res, nil
}

func statusError(s milp.Status) error {
	switch s {
	case milp.Infeasible:
		return ErrInfeasible
	case milp.Unbounded:
		return ErrUnbounded
	default:
		return fmt.Errorf("%w: %s", ErrSolver, s)
	}
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}
