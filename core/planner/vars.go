package planner

import (
	"fmt"

	"github.com/kilianp07/hems/core/milp"
)

// Family identifies a group of per-slot (or per-boundary, per-window)
// variables in the handle table.
type Family int

const (
	FamImport Family = iota
	FamExport
	FamCharge
	FamDischarge
	FamSoC
	FamWaterHeat
	FamWaterStart
	FamSoCShortfall
	FamRampUp
	FamRampDown
	FamImportBreach
	FamCurtailment
	FamLoadShedding
	FamGapViolation
	FamLongGapViolation
	FamTargetUnder
	FamTargetOver
	numFamilies
)

var familyNames = [numFamilies]string{
	FamImport:           "import_kwh",
	FamExport:           "export_kwh",
	FamCharge:           "charge_kwh",
	FamDischarge:        "discharge_kwh",
	FamSoC:              "soc_kwh",
	FamWaterHeat:        "water_heat",
	FamWaterStart:       "water_start",
	FamSoCShortfall:     "soc_violation_kwh",
	FamRampUp:           "ramp_up_kwh",
	FamRampDown:         "ramp_down_kwh",
	FamImportBreach:     "import_breach_kwh",
	FamCurtailment:      "curtailment_kwh",
	FamLoadShedding:     "load_shedding_kwh",
	FamGapViolation:     "gap_viol",
	FamLongGapViolation: "gap_viol_2",
	FamTargetUnder:      "target_under_violation_kwh",
	FamTargetOver:       "target_over_violation_kwh",
}

func (f Family) String() string {
	if f < 0 || f >= numFamilies {
		return fmt.Sprintf("family(%d)", int(f))
	}
	return familyNames[f]
}

// VarTable maps (family, index) to solver handles. Extraction goes through
// the table rather than positional offsets so allocation order can change
// without misaligning results.
type VarTable struct {
	handles [numFamilies][]milp.Var
}

// Len returns how many variables of family f were allocated.
func (vt *VarTable) Len(f Family) int { return len(vt.handles[f]) }

// Has reports whether family f is part of the model.
func (vt *VarTable) Has(f Family) bool { return len(vt.handles[f]) > 0 }

// Lookup returns the handle for f[i].
func (vt *VarTable) Lookup(f Family, i int) (milp.Var, bool) {
	h := vt.handles[f]
	if i < 0 || i >= len(h) {
		return 0, false
	}
	return h[i], true
}

// Value reads f[i] from a solution; absent variables read as zero.
func (vt *VarTable) Value(sol milp.Solution, f Family, i int) float64 {
	v, ok := vt.Lookup(f, i)
	if !ok {
		return 0
	}
	return sol.Value(v)
}

func (vt *VarTable) get(f Family, i int) milp.Var {
	v, ok := vt.Lookup(f, i)
	if !ok {
		panic(fmt.Sprintf("planner: %s[%d] not allocated", f, i))
	}
	return v
}

func (vt *VarTable) alloc(p *milp.Problem, f Family, n int, lower, upper float64) {
	vt.handles[f] = make([]milp.Var, n)
	for i := range vt.handles[f] {
		vt.handles[f][i] = p.NewVar(fmt.Sprintf("%s[%d]", f, i), lower, upper)
	}
}

func (vt *VarTable) allocBinary(p *milp.Problem, f Family, n int) {
	vt.handles[f] = make([]milp.Var, n)
	for i := range vt.handles[f] {
		vt.handles[f][i] = p.NewBinary(fmt.Sprintf("%s[%d]", f, i))
	}
}
