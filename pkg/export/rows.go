package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/hems/core/model"
)

// Action is the battery activity label of a slot.
type Action string

const (
	ActionCharge    Action = "Charge"
	ActionDischarge Action = "Discharge"
	ActionExport    Action = "Export"
	ActionHold      Action = "Hold"
)

// actionThresholdKW is the rate below which battery and export flows count as
// idle.
const actionThresholdKW = 0.01

// Row is one slot of the schedule with rates and state of charge percentages
// derived for inverter control.
type Row struct {
	Start             time.Time
	End               time.Time
	Action            Action
	ChargeKW          float64
	DischargeKW       float64
	GridImportKW      float64
	GridExportKW      float64
	WaterHeatKW       float64
	SoCKWh            float64
	ProjectedSoCPct   float64
	EntrySoCPct       float64
	SoCTargetPct      float64
	CostSEK           float64
	ImportPriceSEKKWh float64
	ExportPriceSEKKWh float64
}

// Rows derives the per-slot table. initialSoCKWh is the battery content at
// the start of the first slot.
//
// The SoC target follows the action: charge and export blocks aim for the
// projected SoC at the end of the block (export never below the minimum),
// discharge aims for the minimum and hold keeps the entry SoC.
func Rows(res model.Result, cfg model.Config, initialSoCKWh float64) []Row {
	pct := func(kwh float64) float64 {
		if cfg.CapacityKWh <= 0 {
			return 0
		}
		return kwh / cfg.CapacityKWh * 100
	}
	rows := make([]Row, len(res.Slots))
	prev := initialSoCKWh
	for i, s := range res.Slots {
		h := s.End.Sub(s.Start).Hours()
		if h <= 0 {
			h = model.DefaultSlotLength.Hours()
		}
		r := Row{
			Start:             s.Start,
			End:               s.End,
			ChargeKW:          s.ChargeKWh / h,
			DischargeKW:       s.DischargeKWh / h,
			GridImportKW:      s.GridImportKWh / h,
			GridExportKW:      s.GridExportKWh / h,
			WaterHeatKW:       s.WaterHeatKW,
			SoCKWh:            s.SoCKWh,
			ProjectedSoCPct:   pct(s.SoCKWh),
			EntrySoCPct:       pct(prev),
			CostSEK:           s.CostSEK,
			ImportPriceSEKKWh: s.ImportPriceSEKKWh,
			ExportPriceSEKKWh: s.ExportPriceSEKKWh,
		}
		r.Action = classify(r)
		rows[i] = r
		prev = s.SoCKWh
	}
	assignTargets(rows, cfg.MinSoCPercent)
	return rows
}

func classify(r Row) Action {
	switch {
	case r.ChargeKW > actionThresholdKW:
		return ActionCharge
	case r.DischargeKW > actionThresholdKW && r.GridExportKW > actionThresholdKW:
		return ActionExport
	case r.DischargeKW > actionThresholdKW:
		return ActionDischarge
	default:
		return ActionHold
	}
}

func assignTargets(rows []Row, minPct float64) {
	for i := 0; i < len(rows); {
		j := i
		for j+1 < len(rows) && rows[j+1].Action == rows[i].Action {
			j++
		}
		for k := i; k <= j; k++ {
			switch rows[k].Action {
			case ActionCharge:
				rows[k].SoCTargetPct = rows[j].ProjectedSoCPct
			case ActionExport:
				rows[k].SoCTargetPct = max(rows[j].ProjectedSoCPct, minPct)
			case ActionDischarge:
				rows[k].SoCTargetPct = minPct
			default:
				rows[k].SoCTargetPct = rows[k].EntrySoCPct
			}
		}
		i = j + 1
	}
}

var csvHeader = []string{
	"start_time", "end_time", "action",
	"charge_kw", "discharge_kw", "grid_import_kw", "grid_export_kw", "water_heat_kw",
	"soc_kwh", "projected_soc_percent", "entry_soc_percent", "soc_target_percent",
	"cost_sek", "import_price_sek_kwh", "export_price_sek_kwh",
}

// WriteCSV writes the derived rows with a header line.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }
	for _, r := range rows {
		rec := []string{
			r.Start.Format(time.RFC3339),
			r.End.Format(time.RFC3339),
			string(r.Action),
			f(r.ChargeKW), f(r.DischargeKW), f(r.GridImportKW), f(r.GridExportKW), f(r.WaterHeatKW),
			f(r.SoCKWh), f(r.ProjectedSoCPct), f(r.EntrySoCPct), f(r.SoCTargetPct),
			f(r.CostSEK), f(r.ImportPriceSEKKWh), f(r.ExportPriceSEKKWh),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
