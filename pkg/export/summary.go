package export

import (
	"fmt"
	"io"

	"github.com/kilianp07/hems/core/model"
)

// Totals aggregates the energy flows of a schedule.
type Totals struct {
	ImportKWh      float64
	ExportKWh      float64
	ChargeKWh      float64
	DischargeKWh   float64
	WaterHeatKWh   float64
	WaterHeatHours float64
	EnergyCostSEK  float64
}

// Sum adds up the slots of res.
func Sum(res model.Result) Totals {
	var t Totals
	for _, s := range res.Slots {
		t.ImportKWh += s.GridImportKWh
		t.ExportKWh += s.GridExportKWh
		t.ChargeKWh += s.ChargeKWh
		t.DischargeKWh += s.DischargeKWh
		t.EnergyCostSEK += s.CostSEK
		if s.WaterHeatKW > 0 {
			h := s.End.Sub(s.Start).Hours()
			t.WaterHeatHours += h
			t.WaterHeatKWh += s.WaterHeatKW * h
		}
	}
	return t
}

// WriteSummary prints a human readable digest of res.
func WriteSummary(w io.Writer, res model.Result) error {
	t := Sum(res)
	lines := []string{
		fmt.Sprintf("Status:          %s (optimal: %t)", res.StatusMsg, res.IsOptimal),
		fmt.Sprintf("Slots:           %d", len(res.Slots)),
		fmt.Sprintf("Objective:       %.4f SEK", res.TotalCostSEK),
		fmt.Sprintf("Energy cost:     %.4f SEK", t.EnergyCostSEK),
		fmt.Sprintf("Grid import:     %.3f kWh", t.ImportKWh),
		fmt.Sprintf("Grid export:     %.3f kWh", t.ExportKWh),
		fmt.Sprintf("Battery charge:  %.3f kWh", t.ChargeKWh),
		fmt.Sprintf("Battery dischg:  %.3f kWh", t.DischargeKWh),
		fmt.Sprintf("Water heating:   %.3f kWh over %.2f h", t.WaterHeatKWh, t.WaterHeatHours),
		fmt.Sprintf("Solve time:      %.1f ms", res.SolveTimeMS),
	}
	if res.Stats != nil {
		lines = append(lines, fmt.Sprintf("Model:           %d vars, %d rows, %d binaries, %d nodes",
			res.Stats.Variables, res.Stats.Constraints, res.Stats.Binaries, res.Stats.Nodes))
	}
	if b := res.Breakdown; b != nil {
		lines = append(lines, "Cost breakdown:")
		for _, c := range []struct {
			name string
			v    float64
		}{
			{"energy", b.EnergySEK},
			{"wear", b.WearSEK},
			{"ramping", b.RampingSEK},
			{"terminal value", b.TerminalValueSEK},
			{"soc shortfall", b.SoCShortfallSEK},
			{"curtailment", b.CurtailmentSEK},
			{"load shedding", b.LoadSheddingSEK},
			{"import breach", b.ImportBreachSEK},
			{"target deviation", b.TargetDeviationSEK},
			{"comfort gap", b.ComfortGapSEK},
			{"block start", b.BlockStartSEK},
		} {
			if c.v != 0 {
				lines = append(lines, fmt.Sprintf("  %-17s %.4f SEK", c.name+":", c.v))
			}
		}
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
