package planner

import (
	"math"

	"github.com/kilianp07/hems/core/milp"
	"github.com/kilianp07/hems/core/model"
)

// heaterOnThreshold decides whether a relaxed binary reads as "on".
const heaterOnThreshold = 0.5

// Extract maps an optimal solution back to physical units. The total is the
// evaluated objective; per-slot costs use the actual export price.
func (m *Model) Extract(sol milp.Solution) model.Result {
	vt := m.Vars
	val := func(f Family, i int) float64 { return clean(vt.Value(sol, f, i)) }

	slots := make([]model.ResultSlot, len(m.Input.Slots))
	for t, s := range m.Input.Slots {
		imp := val(FamImport, t)
		exp := val(FamExport, t)
		rs := model.ResultSlot{
			Start:             s.Start,
			End:               s.End,
			ChargeKWh:         val(FamCharge, t),
			DischargeKWh:      val(FamDischarge, t),
			GridImportKWh:     imp,
			GridExportKWh:     exp,
			SoCKWh:            val(FamSoC, t+1),
			CostSEK:           clean(imp*s.ImportPriceSEKKWh - exp*s.ExportPriceSEKKWh),
			ImportPriceSEKKWh: s.ImportPriceSEKKWh,
			ExportPriceSEKKWh: s.ExportPriceSEKKWh,
		}
		if vt.Has(FamWaterHeat) && vt.Value(sol, FamWaterHeat, t) > heaterOnThreshold {
			rs.WaterHeatKW = m.Config.WaterHeatingPowerKW
		}
		slots[t] = rs
	}
	if n := len(slots); n > 0 {
		slots[n-1].TerminalCreditSEK = clean(val(FamSoC, n) * m.Config.TerminalValueSEKPerKWh)
	}

	return model.Result{
		Slots:        slots,
		TotalCostSEK: clean(m.Problem.Evaluate(sol.Values)),
		IsOptimal:    true,
		StatusMsg:    sol.Status.String(),
		Breakdown:    m.Breakdown(sol),
		Stats:        m.Stats(sol),
	}
}

// Breakdown evaluates each objective component at the solution.
func (m *Model) Breakdown(sol milp.Solution) *model.CostBreakdown {
	c := func(k Component) float64 { return clean(m.objective[k].Eval(sol.Values)) }
	return &model.CostBreakdown{
		EnergySEK:          c(CompEnergy),
		WearSEK:            c(CompWear),
		RampingSEK:         c(CompRamping),
		TerminalValueSEK:   c(CompTerminal),
		SoCShortfallSEK:    c(CompSoCShortfall),
		CurtailmentSEK:     c(CompCurtailment),
		LoadSheddingSEK:    c(CompLoadShedding),
		ImportBreachSEK:    c(CompImportBreach),
		TargetDeviationSEK: c(CompTargetDeviation),
		ComfortGapSEK:      c(CompComfortGap),
		BlockStartSEK:      c(CompBlockStart),
	}
}

// Stats reports the model size and the solver effort.
func (m *Model) Stats(sol milp.Solution) *model.SolverStats {
	return &model.SolverStats{
		Variables:   m.Problem.NumVars(),
		Constraints: m.Problem.NumConstraints(),
		Binaries:    m.Problem.NumBinaries(),
		Nodes:       sol.Stats.Nodes,
		LPSolves:    sol.Stats.LPSolves,
	}
}

// clean flushes solver noise around zero.
func clean(v float64) float64 {
	if math.Abs(v) < 1e-9 {
		return 0
	}
	return v
}
