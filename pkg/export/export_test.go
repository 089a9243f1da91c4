package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/hems/core/model"
)

var t0 = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

func slot(i int, ch, dis, imp, exp, soc float64) model.ResultSlot {
	s := t0.Add(time.Duration(i) * 15 * time.Minute)
	return model.ResultSlot{
		Start: s, End: s.Add(15 * time.Minute),
		ChargeKWh: ch, DischargeKWh: dis, GridImportKWh: imp, GridExportKWh: exp, SoCKWh: soc,
		ImportPriceSEKKWh: 1, ExportPriceSEKKWh: 0.5,
	}
}

func sampleResult() model.Result {
	return model.Result{
		IsOptimal: true,
		StatusMsg: "Optimal",
		Slots: []model.ResultSlot{
			slot(0, 1, 0, 1.2, 0, 6),
			slot(1, 1, 0, 1.2, 0, 7),
			slot(2, 0, 0, 0.2, 0, 7),
			slot(3, 0, 1, 0, 0, 6),
			slot(4, 0, 1, 0, 0.8, 5),
			slot(5, 0, 0.001, 0.2, 0, 4.999),
		},
	}
}

func TestDecodeDocumentJSONKeepsDefaults(t *testing.T) {
	doc, err := DecodeDocument(strings.NewReader(`{
		"input": {"initial_soc_kwh": 2, "slots": [{"start_time": "2025-01-15T10:00:00Z", "load_kwh": 1, "import_price_sek_kwh": 1}]},
		"config": {"capacity_kwh": 10, "enable_export": false}
	}`), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 10.0, doc.Config.CapacityKWh)
	assert.False(t, doc.Config.EnableExport)
	assert.Equal(t, 100.0, doc.Config.MaxSoCPercent)
	assert.Equal(t, 5.0, doc.Config.WaterMinSpacingHours)
	assert.Equal(t, model.FormulationRelaxed, doc.Config.Formulation)
	require.Len(t, doc.Input.Slots, 1)
	assert.Equal(t, model.DefaultSlotLength, doc.Input.Slots[0].Duration())
}

func TestDecodeDocumentYAML(t *testing.T) {
	doc, err := DecodeDocument(strings.NewReader(`
input:
  initial_soc_kwh: 1.5
  slots:
    - start_time: 2025-01-15T10:00:00Z
      end_time: 2025-01-15T11:00:00Z
      import_price_sek_kwh: 0.8
config:
  capacity_kwh: 5
  force_water_on_slots: [0, 2]
`), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, 1.5, doc.Input.InitialSoCKWh)
	assert.Equal(t, time.Hour, doc.Input.Slots[0].Duration())
	assert.Equal(t, []int{0, 2}, doc.Config.ForceWaterOnSlots)
	assert.True(t, doc.Config.EnableExport)
}

func TestDecodeDocumentErrors(t *testing.T) {
	_, err := DecodeDocument(strings.NewReader(`{"input": `), FormatJSON)
	assert.True(t, errors.Is(err, model.ErrInput))
	_, err = DecodeDocument(strings.NewReader("input: [unclosed"), FormatYAML)
	assert.True(t, errors.Is(err, model.ErrInput))
	_, err = ReadDocument("does-not-exist.json")
	assert.True(t, errors.Is(err, model.ErrInput))
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatFromPath("a/b.YML"))
	assert.Equal(t, FormatYAML, FormatFromPath("plan.yaml"))
	assert.Equal(t, FormatJSON, FormatFromPath("plan.json"))
	assert.Equal(t, FormatJSON, FormatFromPath("plan"))
}

func TestRowsActionsAndTargets(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.CapacityKWh = 10
	cfg.MinSoCPercent = 20
	rows := Rows(sampleResult(), cfg, 5)
	require.Len(t, rows, 6)

	want := []Action{ActionCharge, ActionCharge, ActionHold, ActionDischarge, ActionExport, ActionHold}
	for i, r := range rows {
		assert.Equal(t, want[i], r.Action, "slot %d", i)
	}
	assert.InDelta(t, 4.0, rows[0].ChargeKW, 1e-9)
	assert.InDelta(t, 4.8, rows[0].GridImportKW, 1e-9)
	assert.InDelta(t, 50.0, rows[0].EntrySoCPct, 1e-9)
	assert.InDelta(t, 60.0, rows[1].EntrySoCPct, 1e-9)

	// Both charge slots aim for the SoC at the end of the block.
	assert.InDelta(t, 70.0, rows[0].SoCTargetPct, 1e-9)
	assert.InDelta(t, 70.0, rows[1].SoCTargetPct, 1e-9)
	assert.InDelta(t, 70.0, rows[2].SoCTargetPct, 1e-9)
	assert.InDelta(t, 20.0, rows[3].SoCTargetPct, 1e-9)
	assert.InDelta(t, 50.0, rows[4].SoCTargetPct, 1e-9)
	assert.InDelta(t, 50.0, rows[5].SoCTargetPct, 1e-9)
}

func TestRowsWithoutCapacity(t *testing.T) {
	rows := Rows(sampleResult(), model.DefaultConfig(), 0)
	for _, r := range rows {
		assert.Zero(t, r.ProjectedSoCPct)
	}
}

func TestWriteCSV(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.CapacityKWh = 10
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, Rows(sampleResult(), cfg, 5)))
	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 7)
	assert.Equal(t, csvHeader, recs[0])
	assert.Equal(t, "2025-01-15T10:00:00Z", recs[1][0])
	assert.Equal(t, "Charge", recs[1][2])
	assert.Equal(t, "4.0000", recs[1][3])
	assert.Equal(t, "Export", recs[5][2])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleResult()))
	var back map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, true, back["is_optimal"])
	slots := back["slots"].([]any)
	first := slots[0].(map[string]any)
	for _, k := range []string{"start_time", "end_time", "charge_kwh", "discharge_kwh", "grid_import_kwh",
		"grid_export_kwh", "soc_kwh", "cost_sek", "import_price_sek_kwh", "export_price_sek_kwh",
		"water_heat_kw", "terminal_credit_sek"} {
		assert.Contains(t, first, k)
	}
}

func TestWriteSummary(t *testing.T) {
	res := sampleResult()
	res.Slots[2].WaterHeatKW = 4
	res.TotalCostSEK = 1.25
	res.Breakdown = &model.CostBreakdown{EnergySEK: 1.5, TerminalValueSEK: -0.25}
	res.Stats = &model.SolverStats{Variables: 10, Constraints: 5, Binaries: 2, Nodes: 3}

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, res))
	out := buf.String()
	assert.Contains(t, out, "Status:          Optimal (optimal: true)")
	assert.Contains(t, out, "Objective:       1.2500 SEK")
	assert.Contains(t, out, "Water heating:   1.000 kWh over 0.25 h")
	assert.Contains(t, out, "terminal value:")
	assert.NotContains(t, out, "curtailment:")
	assert.Contains(t, out, "10 vars, 5 rows, 2 binaries, 3 nodes")
}

func TestSum(t *testing.T) {
	tot := Sum(sampleResult())
	assert.InDelta(t, 2.8, tot.ImportKWh, 1e-9)
	assert.InDelta(t, 0.8, tot.ExportKWh, 1e-9)
	assert.InDelta(t, 2.0, tot.ChargeKWh, 1e-9)
	assert.InDelta(t, 2.001, tot.DischargeKWh, 1e-9)
}

func TestRenderChart(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.CapacityKWh = 10
	var buf bytes.Buffer
	require.NoError(t, RenderChart(&buf, Rows(sampleResult(), cfg, 5), "Plan 2025-01-15"))
	html := buf.String()
	assert.Contains(t, html, "<html")
	assert.Contains(t, html, "Plan 2025-01-15")
	assert.Contains(t, html, "Import price")
	assert.Contains(t, html, "Water heater")
}
