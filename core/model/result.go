package model

import "time"

// ResultSlot is the solved schedule for one slot.
type ResultSlot struct {
	Start             time.Time `json:"start_time"`
	End               time.Time `json:"end_time"`
	ChargeKWh         float64   `json:"charge_kwh"`
	DischargeKWh      float64   `json:"discharge_kwh"`
	GridImportKWh     float64   `json:"grid_import_kwh"`
	GridExportKWh     float64   `json:"grid_export_kwh"`
	SoCKWh            float64   `json:"soc_kwh"`
	CostSEK           float64   `json:"cost_sek"`
	ImportPriceSEKKWh float64   `json:"import_price_sek_kwh"`
	ExportPriceSEKKWh float64   `json:"export_price_sek_kwh"`
	WaterHeatKW       float64   `json:"water_heat_kw"`
	TerminalCreditSEK float64   `json:"terminal_credit_sek"`
}

// CostBreakdown splits the objective value into its components. The sum of
// all fields equals Result.TotalCostSEK up to rounding; TerminalValueSEK is
// negative whenever energy is left in the battery.
type CostBreakdown struct {
	EnergySEK          float64 `json:"energy_sek"`
	WearSEK            float64 `json:"wear_sek"`
	RampingSEK         float64 `json:"ramping_sek"`
	TerminalValueSEK   float64 `json:"terminal_value_sek"`
	SoCShortfallSEK    float64 `json:"soc_shortfall_penalty_sek"`
	CurtailmentSEK     float64 `json:"curtailment_penalty_sek"`
	LoadSheddingSEK    float64 `json:"load_shedding_penalty_sek"`
	ImportBreachSEK    float64 `json:"import_breach_penalty_sek"`
	TargetDeviationSEK float64 `json:"target_deviation_penalty_sek"`
	ComfortGapSEK      float64 `json:"comfort_gap_penalty_sek"`
	BlockStartSEK      float64 `json:"block_start_penalty_sek"`
}

// SolverStats describes the size of the model and the effort spent on it.
type SolverStats struct {
	Variables   int `json:"variables"`
	Constraints int `json:"constraints"`
	Binaries    int `json:"binaries"`
	Nodes       int `json:"nodes"`
	LPSolves    int `json:"lp_solves"`
}

// Result is the outcome of one planning run. TotalCostSEK is the optimiser's
// objective and therefore includes penalties and the terminal credit, unlike
// the per-slot CostSEK fields.
type Result struct {
	Slots        []ResultSlot   `json:"slots"`
	TotalCostSEK float64        `json:"total_cost_sek"`
	IsOptimal    bool           `json:"is_optimal"`
	StatusMsg    string         `json:"status_msg"`
	SolveTimeMS  float64        `json:"solve_time_ms"`
	Breakdown    *CostBreakdown `json:"cost_breakdown,omitempty"`
	Stats        *SolverStats   `json:"solver_stats,omitempty"`
}
