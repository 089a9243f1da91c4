package planner

import (
	"errors"
	"testing"
	"time"

	"github.com/kilianp07/hems/core/milp"
	"github.com/kilianp07/hems/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quarterSlots(start time.Time, n int) []model.Slot {
	slots := make([]model.Slot, n)
	for i := range slots {
		s := start.Add(time.Duration(i) * 15 * time.Minute)
		slots[i] = model.Slot{Start: s, End: s.Add(15 * time.Minute), LoadKWh: 0.2, ImportPriceSEKKWh: 1}
	}
	return slots
}

func findConstraint(p *milp.Problem, name string) (milp.Constraint, bool) {
	for _, c := range p.Constraints() {
		if c.Name == name {
			return c, true
		}
	}
	return milp.Constraint{}, false
}

func TestBuildAllocatesOptionalFamilies(t *testing.T) {
	cfg := batteryConfig()
	in := model.Input{Slots: hourlySlots([]float64{1, 1, 1}, []float64{1, 1, 1})}

	m, err := Build(cfg, in)
	require.NoError(t, err)
	assert.Equal(t, 4, m.Vars.Len(FamSoC))
	assert.True(t, m.Vars.Has(FamCurtailment))
	assert.True(t, m.Vars.Has(FamLoadShedding))
	assert.False(t, m.Vars.Has(FamRampUp), "no ramping cost configured")
	assert.False(t, m.Vars.Has(FamSoCShortfall), "no SoC floor configured")
	assert.False(t, m.Vars.Has(FamImportBreach), "no fuse configured")
	assert.False(t, m.Vars.Has(FamWaterHeat), "heater disabled")
	assert.False(t, m.Vars.Has(FamTargetUnder))

	cfg.RampingCostSEKPerKW = 0.1
	cfg.MinSoCPercent = 10
	cfg.GridImportLimitKW = model.Float(3)
	cfg.TargetSoCKWh = model.Float(50)
	m, err = Build(cfg, in)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Vars.Len(FamRampUp))
	assert.Equal(t, 4, m.Vars.Len(FamSoCShortfall))
	assert.Equal(t, 3, m.Vars.Len(FamImportBreach))
	assert.Equal(t, 1, m.Vars.Len(FamTargetOver))
}

func TestBuildStrictUsesHardBounds(t *testing.T) {
	cfg := batteryConfig()
	cfg.Formulation = model.FormulationStrict
	cfg.MinSoCPercent = 20
	cfg.MaxSoCPercent = 90
	cfg.RampingCostSEKPerKW = 1
	cfg.GridImportLimitKW = model.Float(2)
	in := model.Input{Slots: hourlySlots([]float64{1, 1}, []float64{1, 1})}

	m, err := Build(cfg, in)
	require.NoError(t, err)
	for _, f := range []Family{FamCurtailment, FamLoadShedding, FamSoCShortfall, FamRampUp, FamImportBreach} {
		assert.False(t, m.Vars.Has(f), "%s should not exist in strict mode", f)
	}
	soc0, _ := m.Vars.Lookup(FamSoC, 0)
	soc1, _ := m.Vars.Lookup(FamSoC, 1)
	assert.Equal(t, 20.0, m.Problem.VarInfo(soc0).Lower)
	assert.Equal(t, 90.0, m.Problem.VarInfo(soc0).Upper)
	assert.Equal(t, 20.0, m.Problem.VarInfo(soc1).Lower)
	assert.Equal(t, 90.0, m.Problem.VarInfo(soc1).Upper)

	fuse, ok := findConstraint(m.Problem, "import_fuse[0]")
	require.True(t, ok)
	assert.Len(t, fuse.Expr.Terms, 1)
	assert.Equal(t, 2.0, fuse.RHS)
}

func TestBuildExportToggleAndCaps(t *testing.T) {
	cfg := batteryConfig()
	cfg.EnableExport = false
	cfg.MaxImportPowerKW = model.Float(4)
	in := model.Input{Slots: quarterSlots(t0, 2)}

	m, err := Build(cfg, in)
	require.NoError(t, err)
	exp, _ := m.Vars.Lookup(FamExport, 1)
	imp, _ := m.Vars.Lookup(FamImport, 1)
	ch, _ := m.Vars.Lookup(FamCharge, 0)
	assert.Equal(t, 0.0, m.Problem.VarInfo(exp).Upper)
	assert.Equal(t, 1.0, m.Problem.VarInfo(imp).Upper)
	assert.Equal(t, 1.25, m.Problem.VarInfo(ch).Upper)
}

func TestBuildClampsInitialSoC(t *testing.T) {
	cfg := batteryConfig()
	in := model.Input{Slots: hourlySlots([]float64{1}, []float64{1}), InitialSoCKWh: 150}
	m, err := Build(cfg, in)
	require.NoError(t, err)
	assert.Equal(t, 100.0, m.InitialSoCKWh)
	c, ok := findConstraint(m.Problem, "soc_init")
	require.True(t, ok)
	assert.Equal(t, 100.0, c.RHS)

	cfg.Formulation = model.FormulationStrict
	cfg.MinSoCPercent = 20
	cfg.MaxSoCPercent = 90
	m, err = Build(cfg, in)
	require.NoError(t, err)
	assert.Equal(t, 90.0, m.InitialSoCKWh)

	in.InitialSoCKWh = 5
	m, err = Build(cfg, in)
	require.NoError(t, err)
	assert.Equal(t, 20.0, m.InitialSoCKWh)
}

func TestBuildRelaxedMaxSoCSkipsInitialState(t *testing.T) {
	cfg := batteryConfig()
	cfg.MaxSoCPercent = 80
	in := model.Input{Slots: hourlySlots([]float64{1}, []float64{1}), InitialSoCKWh: 95}
	m, err := Build(cfg, in)
	require.NoError(t, err)
	assert.Equal(t, 95.0, m.InitialSoCKWh)
	_, ok := findConstraint(m.Problem, "soc_max[0]")
	assert.False(t, ok, "the observed state is not capped")
	c, ok := findConstraint(m.Problem, "soc_max[1]")
	require.True(t, ok)
	assert.Equal(t, 80.0, c.RHS)
}

func TestBuildWaterConstraints(t *testing.T) {
	cfg := batteryConfig()
	cfg.WaterHeatingPowerKW = 3
	cfg.WaterHeatingMaxGapHours = 3
	cfg.WaterMinSpacingHours = 2
	cfg.ForceWaterOnSlots = []int{3, 1, 3, 12, -1}
	in := model.Input{Slots: hourlySlots(make([]float64, 8), make([]float64, 8))}

	m, err := Build(cfg, in)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, m.ForcedSlots)
	assert.Equal(t, []int{12, -1}, m.IgnoredForcedSlots)
	assert.Equal(t, 2, m.SpacingSlots)

	// Tier one uses 3-slot windows, tier two ceil(4.5) = 5.
	assert.Equal(t, 6, m.Vars.Len(FamGapViolation))
	assert.Equal(t, 4, m.Vars.Len(FamLongGapViolation))

	sp, ok := findConstraint(m.Problem, "water_spacing[5]")
	require.True(t, ok)
	assert.Len(t, sp.Expr.Terms, 3)
	assert.Equal(t, 2.0, sp.RHS)

	_, ok = findConstraint(m.Problem, "water_spacing[0]")
	assert.False(t, ok)
}

func TestBuildGapWindowLongerThanHorizon(t *testing.T) {
	cfg := batteryConfig()
	cfg.WaterHeatingPowerKW = 1
	cfg.WaterHeatingMaxGapHours = 3
	in := model.Input{Slots: hourlySlots([]float64{0, 0, 0, 0}, []float64{1, 1, 1, 1})}
	m, err := Build(cfg, in)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Vars.Len(FamGapViolation))
	assert.False(t, m.Vars.Has(FamLongGapViolation), "5-slot window exceeds horizon")

	cfg.Formulation = model.FormulationStrict
	m, err = Build(cfg, in)
	require.NoError(t, err)
	assert.False(t, m.Vars.Has(FamGapViolation))
}

func TestBuildDailyRequirements(t *testing.T) {
	cfg := batteryConfig()
	cfg.WaterHeatingPowerKW = 2
	cfg.WaterHeatingMinKWh = 6
	cfg.WaterHeatedTodayKWh = 4
	cfg.DeferUpToHours = 4
	start := time.Date(2025, 1, 15, 22, 0, 0, 0, time.UTC)
	var slots []model.Slot
	for i := 0; i < 8; i++ {
		s := start.Add(time.Duration(i) * time.Hour)
		slots = append(slots, model.Slot{Start: s, End: s.Add(time.Hour)})
	}
	m, err := Build(cfg, model.Input{Slots: slots})
	require.NoError(t, err)

	require.Len(t, m.DailyRequirements, 2)
	first, second := m.DailyRequirements[0], m.DailyRequirements[1]
	assert.Equal(t, "2025-01-15", first.Day.String())
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, first.Slots)
	assert.Equal(t, 2.0, first.MinKWh)
	assert.Equal(t, "2025-01-16", second.Day.String())
	assert.Equal(t, 6.0, second.MinKWh)

	c, ok := findConstraint(m.Problem, "water_daily[2025-01-16]")
	require.True(t, ok)
	assert.Len(t, c.Expr.Terms, 2)
	assert.Equal(t, milp.GE, c.Sense)
}

func TestBuildCarryOverFloorsAtZero(t *testing.T) {
	cfg := batteryConfig()
	cfg.WaterHeatingPowerKW = 2
	cfg.WaterHeatingMinKWh = 3
	cfg.WaterHeatedTodayKWh = 5
	m, err := Build(cfg, model.Input{Slots: hourlySlots([]float64{0, 0}, []float64{1, 1})})
	require.NoError(t, err)
	require.Len(t, m.DailyRequirements, 1)
	assert.Equal(t, 0.0, m.DailyRequirements[0].MinKWh)
	for _, c := range m.Problem.Constraints() {
		assert.NotContains(t, c.Name, "water_daily")
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	cfg := batteryConfig()
	cfg.WaterHeatingPowerKW = 2
	cfg.WaterHeatingMaxGapHours = 1
	in := model.Input{Slots: quarterSlots(t0, 10)}
	a, err := Build(cfg, in)
	require.NoError(t, err)
	b, err := Build(cfg, in)
	require.NoError(t, err)
	assert.Equal(t, a.Problem.Vars(), b.Problem.Vars())
	assert.Equal(t, a.Problem.Constraints(), b.Problem.Constraints())
	assert.Equal(t, a.Problem.Objective(), b.Problem.Objective())
}

func TestBuildEmptyHorizon(t *testing.T) {
	_, err := Build(batteryConfig(), model.Input{})
	assert.True(t, errors.Is(err, errEmptyHorizon))
}

func TestSlotsFor(t *testing.T) {
	cases := []struct {
		hours, slot float64
		want        int
	}{
		{5, 0.25, 20},
		{1, 0.25, 4},
		{0.3, 0.25, 2},
		{0.1, 1, 1},
		{3, 1, 3},
	}
	for _, c := range cases {
		if got := slotsFor(c.hours, c.slot); got != c.want {
			t.Fatalf("slotsFor(%v, %v) = %d, want %d", c.hours, c.slot, got, c.want)
		}
	}
}

func TestObjectiveUsesThresholdAdjustedExport(t *testing.T) {
	cfg := batteryConfig()
	cfg.ExportThresholdSEKPerKWh = 0.2
	slots := hourlySlots([]float64{0}, []float64{1})
	slots[0].ExportPriceSEKKWh = 0.5
	m, err := Build(cfg, model.Input{Slots: slots})
	require.NoError(t, err)
	exp, _ := m.Vars.Lookup(FamExport, 0)
	coef := m.ComponentExpr(CompEnergy).Coefficients()[exp]
	assert.InDelta(t, -0.3, coef, 1e-12)
}
