package planner

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/kilianp07/hems/core/milp"
)

func (b *builder) water() {
	if !b.v.Has(FamWaterHeat) {
		return
	}
	b.waterStarts()
	b.forcedSlots()
	b.dailyMinimum()
	b.spacing()
	if !b.strict {
		b.comfortGap()
	}
}

// waterStarts flags an off-to-on transition in water_start. The flag is only
// bounded from below; the objective keeps it at the minimum.
func (b *builder) waterStarts() {
	b.p.AddConstraint("water_start[0]",
		milp.NewExpr(milp.T(b.v.get(FamWaterStart, 0), 1), milp.T(b.v.get(FamWaterHeat, 0), -1)), milp.EQ, 0)
	for t := 1; t < b.n; t++ {
		e := milp.NewExpr(
			milp.T(b.v.get(FamWaterStart, t), 1),
			milp.T(b.v.get(FamWaterHeat, t), -1),
			milp.T(b.v.get(FamWaterHeat, t-1), 1),
		)
		b.p.AddConstraint(fmt.Sprintf("water_start[%d]", t), e, milp.GE, 0)
	}
}

func (b *builder) forcedSlots() {
	seen := make(map[int]bool, len(b.cfg.ForceWaterOnSlots))
	for _, t := range b.cfg.ForceWaterOnSlots {
		if seen[t] {
			continue
		}
		seen[t] = true
		if t < 0 || t >= b.n {
			b.IgnoredForcedSlots = append(b.IgnoredForcedSlots, t)
			continue
		}
		b.ForcedSlots = append(b.ForcedSlots, t)
	}
	sort.Ints(b.ForcedSlots)
	for _, t := range b.ForcedSlots {
		b.p.AddConstraint(fmt.Sprintf("water_forced[%d]", t),
			milp.NewExpr(milp.T(b.v.get(FamWaterHeat, t), 1)), milp.EQ, 1)
	}
}

func (b *builder) dailyMinimum() {
	if b.cfg.WaterHeatingMinKWh <= 0 {
		return
	}
	starts := make([]time.Time, b.n)
	for t, s := range b.slots {
		starts[t] = s.Start
	}
	perSlot := b.cfg.WaterHeatingPowerKW * b.h
	for i, g := range groupByDay(starts, b.cfg.DeferUpToHours) {
		need := b.cfg.WaterHeatingMinKWh
		if i == 0 {
			need = math.Max(0, need-b.cfg.WaterHeatedTodayKWh)
		}
		b.DailyRequirements = append(b.DailyRequirements, DailyRequirement{Day: g.Day, Slots: g.Slots, MinKWh: need})
		if need <= 0 {
			continue
		}
		var e milp.Expr
		for _, t := range g.Slots {
			e.Add(b.v.get(FamWaterHeat, t), perSlot)
		}
		b.p.AddConstraint(fmt.Sprintf("water_daily[%s]", g.Day), e, milp.GE, need)
	}
}

// spacing forbids a start at t while any of the preceding S slots heated:
// sum(heat[t-S:t]) + S*start[t] <= S.
func (b *builder) spacing() {
	if b.cfg.WaterMinSpacingHours <= 0 {
		return
	}
	s := slotsFor(b.cfg.WaterMinSpacingHours, b.h)
	b.SpacingSlots = s
	for t := 1; t < b.n; t++ {
		e := milp.NewExpr(milp.T(b.v.get(FamWaterStart, t), float64(s)))
		for j := max(0, t-s); j < t; j++ {
			e.Add(b.v.get(FamWaterHeat, j), 1)
		}
		b.p.AddConstraint(fmt.Sprintf("water_spacing[%d]", t), e, milp.LE, float64(s))
	}
}

// comfortGap asks for at least one heating slot in every window of G slots,
// at the configured gap and at 1.5 times it. Misses are priced per window.
func (b *builder) comfortGap() {
	gap := b.cfg.WaterHeatingMaxGapHours
	if gap <= 0 || b.cfg.WaterComfortPenaltySEK <= 0 {
		return
	}
	tiers := []struct {
		fam  Family
		size int
	}{
		{FamGapViolation, slotsFor(gap, b.h)},
		{FamLongGapViolation, slotsFor(gap*longGapFactor, b.h)},
	}
	for _, tier := range tiers {
		if tier.size > b.n {
			continue
		}
		windows := b.n - tier.size + 1
		b.v.alloc(b.p, tier.fam, windows, 0, math.Inf(1))
		for w := 0; w < windows; w++ {
			e := milp.NewExpr(milp.T(b.v.get(tier.fam, w), 1))
			for t := w; t < w+tier.size; t++ {
				e.Add(b.v.get(FamWaterHeat, t), 1)
			}
			b.p.AddConstraint(fmt.Sprintf("%s[%d]", tier.fam, w), e, milp.GE, 1)
		}
	}
}
