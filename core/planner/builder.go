package planner

import (
	"errors"
	"fmt"
	"math"

	"github.com/kilianp07/hems/core/milp"
	"github.com/kilianp07/hems/core/model"
)

// Component labels a part of the objective so results can report where the
// cost comes from.
type Component int

const (
	CompEnergy Component = iota
	CompWear
	CompRamping
	CompTerminal
	CompSoCShortfall
	CompCurtailment
	CompLoadShedding
	CompImportBreach
	CompTargetDeviation
	CompComfortGap
	CompBlockStart
	numComponents
)

// errEmptyHorizon is returned by Build for a zero-slot input; Plan handles
// that case before building.
var errEmptyHorizon = errors.New("empty horizon")

// Model is a built optimisation problem together with the tables needed to
// read a solution back.
type Model struct {
	Problem   *milp.Problem
	Vars      *VarTable
	Config    model.Config
	Input     model.Input
	SlotHours float64

	// InitialSoCKWh is the initial state after clamping to [0, capacity], or
	// to [min, max] SoC under the strict formulation.
	InitialSoCKWh float64

	// Water heater bookkeeping, filled only when the heater is modelled.
	ForcedSlots        []int
	IgnoredForcedSlots []int
	DailyRequirements  []DailyRequirement
	SpacingSlots       int

	objective [numComponents]milp.Expr
}

// ComponentExpr returns the objective expression of one component.
func (m *Model) ComponentExpr(c Component) milp.Expr { return m.objective[c] }

type builder struct {
	*Model
	p      *milp.Problem
	v      *VarTable
	cfg    model.Config
	slots  []model.Slot
	n      int
	h      float64
	strict bool
}

// Build turns a configuration and a horizon into a MILP. It is a pure
// function of its inputs and allocates variables in a fixed order.
func Build(cfg model.Config, in model.Input) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	h, err := in.SlotHours()
	if err != nil {
		return nil, err
	}
	if len(in.Slots) == 0 {
		return nil, errEmptyHorizon
	}
	m := &Model{
		Problem:   milp.NewProblem("hems_schedule"),
		Vars:      &VarTable{},
		Config:    cfg,
		Input:     in,
		SlotHours: h,
	}
	b := &builder{
		Model:  m,
		p:      m.Problem,
		v:      m.Vars,
		cfg:    cfg,
		slots:  in.Slots,
		n:      len(in.Slots),
		h:      h,
		strict: cfg.Strict(),
	}
	b.allocate()
	b.battery(in.InitialSoCKWh)
	b.grid()
	b.balance()
	b.ramping()
	b.water()
	b.target()
	b.costs()

	var obj milp.Expr
	for _, e := range m.objective {
		obj.AddExpr(e, 1)
	}
	m.Problem.SetObjective(obj)
	return m, nil
}

func (b *builder) allocate() {
	inf := math.Inf(1)
	n := b.n

	b.v.alloc(b.p, FamImport, n, 0, b.capKWh(b.cfg.MaxImportPowerKW))
	exportUB := b.capKWh(b.cfg.MaxExportPowerKW)
	if !b.cfg.EnableExport {
		exportUB = 0
	}
	b.v.alloc(b.p, FamExport, n, 0, exportUB)
	b.v.alloc(b.p, FamCharge, n, 0, b.cfg.MaxChargePowerKW*b.h)
	b.v.alloc(b.p, FamDischarge, n, 0, b.cfg.MaxDischargePowerKW*b.h)

	b.v.alloc(b.p, FamSoC, n+1, 0, b.cfg.CapacityKWh)
	if b.strict {
		for i := 0; i <= n; i++ {
			b.p.SetBounds(b.v.get(FamSoC, i), b.cfg.MinSoCKWh(), b.cfg.MaxSoCKWh())
		}
	}

	if b.cfg.WaterHeatingEnabled() {
		b.v.allocBinary(b.p, FamWaterHeat, n)
		b.v.allocBinary(b.p, FamWaterStart, n)
	}

	if b.strict {
		return
	}
	if b.cfg.MinSoCKWh() > 0 {
		b.v.alloc(b.p, FamSoCShortfall, n+1, 0, inf)
	}
	if b.cfg.RampingCostSEKPerKW > 0 {
		b.v.alloc(b.p, FamRampUp, n, 0, inf)
		b.v.alloc(b.p, FamRampDown, n, 0, inf)
	}
	if b.cfg.GridImportLimitKW != nil {
		b.v.alloc(b.p, FamImportBreach, n, 0, inf)
	}
	b.v.alloc(b.p, FamCurtailment, n, 0, inf)
	b.v.alloc(b.p, FamLoadShedding, n, 0, inf)
}

// capKWh converts an optional power cap into a per-slot energy bound.
func (b *builder) capKWh(kw *float64) float64 {
	if kw == nil {
		return math.Inf(1)
	}
	return *kw * b.h
}

func (b *builder) battery(initial float64) {
	cfg := b.cfg
	lo, hi := 0.0, cfg.CapacityKWh
	if b.strict {
		lo, hi = cfg.MinSoCKWh(), cfg.MaxSoCKWh()
	}
	b.InitialSoCKWh = math.Max(lo, math.Min(hi, initial))
	b.p.AddConstraint("soc_init", milp.NewExpr(milp.T(b.v.get(FamSoC, 0), 1)), milp.EQ, b.InitialSoCKWh)

	etaC := cfg.EffectiveChargeEfficiency()
	etaD := cfg.EffectiveDischargeEfficiency()
	for t := 0; t < b.n; t++ {
		e := milp.NewExpr(
			milp.T(b.v.get(FamSoC, t+1), 1),
			milp.T(b.v.get(FamSoC, t), -1),
			milp.T(b.v.get(FamCharge, t), -etaC),
			milp.T(b.v.get(FamDischarge, t), 1/etaD),
		)
		b.p.AddConstraint(fmt.Sprintf("soc_dyn[%d]", t), e, milp.EQ, 0)
	}

	if b.strict {
		return
	}
	// The upper limit has no slack. Unlike the lower one it skips soc[0], so
	// an observed state above max SoC stays feasible.
	maxSoC := cfg.MaxSoCKWh()
	for t := 1; t <= b.n; t++ {
		b.p.AddConstraint(fmt.Sprintf("soc_max[%d]", t), milp.NewExpr(milp.T(b.v.get(FamSoC, t), 1)), milp.LE, maxSoC)
	}
	if !b.v.Has(FamSoCShortfall) {
		return
	}
	minSoC := cfg.MinSoCKWh()
	for t := 0; t <= b.n; t++ {
		e := milp.NewExpr(milp.T(b.v.get(FamSoC, t), 1), milp.T(b.v.get(FamSoCShortfall, t), 1))
		b.p.AddConstraint(fmt.Sprintf("soc_min[%d]", t), e, milp.GE, minSoC)
	}
}

func (b *builder) grid() {
	if b.cfg.GridImportLimitKW == nil {
		return
	}
	limit := *b.cfg.GridImportLimitKW * b.h
	for t := 0; t < b.n; t++ {
		e := milp.NewExpr(milp.T(b.v.get(FamImport, t), 1))
		if b.v.Has(FamImportBreach) {
			e.Add(b.v.get(FamImportBreach, t), -1)
		}
		b.p.AddConstraint(fmt.Sprintf("import_fuse[%d]", t), e, milp.LE, limit)
	}
}

// balance adds supply == demand per slot, written as
// discharge + import [+ shedding] - charge - export - heater [- curtailment] == load - pv.
func (b *builder) balance() {
	waterKWh := b.cfg.WaterHeatingPowerKW * b.h
	for t, s := range b.slots {
		e := milp.NewExpr(
			milp.T(b.v.get(FamDischarge, t), 1),
			milp.T(b.v.get(FamImport, t), 1),
			milp.T(b.v.get(FamCharge, t), -1),
			milp.T(b.v.get(FamExport, t), -1),
		)
		if b.v.Has(FamWaterHeat) {
			e.Add(b.v.get(FamWaterHeat, t), -waterKWh)
		}
		if b.v.Has(FamLoadShedding) {
			e.Add(b.v.get(FamLoadShedding, t), 1)
		}
		if b.v.Has(FamCurtailment) {
			e.Add(b.v.get(FamCurtailment, t), -1)
		}
		b.p.AddConstraint(fmt.Sprintf("balance[%d]", t), e, milp.EQ, s.LoadKWh-s.PVKWh)
	}
}

func (b *builder) ramping() {
	if !b.v.Has(FamRampUp) {
		return
	}
	b.p.AddConstraint("ramp_up[0]", milp.NewExpr(milp.T(b.v.get(FamRampUp, 0), 1)), milp.EQ, 0)
	b.p.AddConstraint("ramp_down[0]", milp.NewExpr(milp.T(b.v.get(FamRampDown, 0), 1)), milp.EQ, 0)
	for t := 1; t < b.n; t++ {
		e := milp.NewExpr(
			milp.T(b.v.get(FamCharge, t), 1),
			milp.T(b.v.get(FamDischarge, t), -1),
			milp.T(b.v.get(FamCharge, t-1), -1),
			milp.T(b.v.get(FamDischarge, t-1), 1),
			milp.T(b.v.get(FamRampUp, t), -1),
			milp.T(b.v.get(FamRampDown, t), 1),
		)
		b.p.AddConstraint(fmt.Sprintf("ramp[%d]", t), e, milp.EQ, 0)
	}
}

func (b *builder) target() {
	if b.cfg.TargetSoCKWh == nil {
		return
	}
	target := *b.cfg.TargetSoCKWh
	b.v.alloc(b.p, FamTargetUnder, 1, 0, math.Inf(1))
	b.v.alloc(b.p, FamTargetOver, 1, 0, math.Inf(1))
	last := b.v.get(FamSoC, b.n)
	b.p.AddConstraint("target_under",
		milp.NewExpr(milp.T(last, 1), milp.T(b.v.get(FamTargetUnder, 0), 1)), milp.GE, target)
	b.p.AddConstraint("target_over",
		milp.NewExpr(milp.T(last, 1), milp.T(b.v.get(FamTargetOver, 0), -1)), milp.LE, target)
}

func (b *builder) costs() {
	cfg := b.cfg
	obj := &b.objective
	for t, s := range b.slots {
		obj[CompEnergy].Add(b.v.get(FamImport, t), s.ImportPriceSEKKWh)
		obj[CompEnergy].Add(b.v.get(FamExport, t), -(s.ExportPriceSEKKWh - cfg.ExportThresholdSEKPerKWh))
		obj[CompWear].Add(b.v.get(FamCharge, t), cfg.WearCostSEKPerKWh)
		obj[CompWear].Add(b.v.get(FamDischarge, t), cfg.WearCostSEKPerKWh)
		if b.v.Has(FamRampUp) {
			perKWh := cfg.RampingCostSEKPerKW / b.h
			obj[CompRamping].Add(b.v.get(FamRampUp, t), perKWh)
			obj[CompRamping].Add(b.v.get(FamRampDown, t), perKWh)
		}
		if b.v.Has(FamCurtailment) {
			obj[CompCurtailment].Add(b.v.get(FamCurtailment, t), CurtailmentPenalty)
		}
		if b.v.Has(FamLoadShedding) {
			obj[CompLoadShedding].Add(b.v.get(FamLoadShedding, t), LoadSheddingPenalty)
		}
		if b.v.Has(FamImportBreach) {
			obj[CompImportBreach].Add(b.v.get(FamImportBreach, t), ImportBreachPenalty)
		}
		if b.v.Has(FamWaterStart) && cfg.WaterBlockStartPenaltySEK > 0 {
			obj[CompBlockStart].Add(b.v.get(FamWaterStart, t), cfg.WaterBlockStartPenaltySEK)
		}
	}
	obj[CompTerminal].Add(b.v.get(FamSoC, b.n), -cfg.TerminalValueSEKPerKWh)
	for i := 0; i < b.v.Len(FamSoCShortfall); i++ {
		obj[CompSoCShortfall].Add(b.v.get(FamSoCShortfall, i), MinSoCPenalty)
	}
	if b.v.Has(FamTargetUnder) {
		obj[CompTargetDeviation].Add(b.v.get(FamTargetUnder, 0), cfg.TargetSoCPenaltySEK)
		obj[CompTargetDeviation].Add(b.v.get(FamTargetOver, 0), cfg.TargetSoCPenaltySEK)
	}
	for _, f := range []Family{FamGapViolation, FamLongGapViolation} {
		for i := 0; i < b.v.Len(f); i++ {
			obj[CompComfortGap].Add(b.v.get(f, i), cfg.WaterComfortPenaltySEK)
		}
	}
}

// slotsFor converts a duration in hours into a whole number of slots,
// rounding up and never returning less than one.
func slotsFor(hours, slotHours float64) int {
	n := int(math.Ceil(hours/slotHours - 1e-9))
	if n < 1 {
		return 1
	}
	return n
}
