package model

import "fmt"

// Formulation selects how operating limits are encoded in the optimisation
// model.
type Formulation string

const (
	// FormulationRelaxed backs the SoC minimum, the import fuse and the
	// energy balance with penalised slack variables.
	FormulationRelaxed Formulation = "relaxed"
	// FormulationStrict enforces every limit as a hard bound.
	FormulationStrict Formulation = "strict"
)

// Config holds the static parameters of one planning run.
type Config struct {
	CapacityKWh         float64 `json:"capacity_kwh"`
	MinSoCPercent       float64 `json:"min_soc_percent"`
	MaxSoCPercent       float64 `json:"max_soc_percent"`
	MaxChargePowerKW    float64 `json:"max_charge_power_kw"`
	MaxDischargePowerKW float64 `json:"max_discharge_power_kw"`
	ChargeEfficiency    float64 `json:"charge_efficiency"`
	DischargeEfficiency float64 `json:"discharge_efficiency"`
	WearCostSEKPerKWh   float64 `json:"wear_cost_sek_per_kwh"`

	// Hard grid caps; nil means uncapped.
	MaxExportPowerKW *float64 `json:"max_export_power_kw,omitempty"`
	MaxImportPowerKW *float64 `json:"max_import_power_kw,omitempty"`
	// GridImportLimitKW is the fuse limit. Breaches are penalised in the
	// relaxed formulation and forbidden in the strict one.
	GridImportLimitKW *float64 `json:"grid_import_limit_kw,omitempty"`

	TargetSoCKWh              *float64 `json:"target_soc_kwh,omitempty"`
	TargetSoCPenaltySEK       float64  `json:"target_soc_penalty_sek"`
	TerminalValueSEKPerKWh    float64  `json:"terminal_value_sek_kwh"`
	RampingCostSEKPerKW       float64  `json:"ramping_cost_sek_per_kw"`
	ExportThresholdSEKPerKWh  float64  `json:"export_threshold_sek_per_kwh"`
	EnableExport              bool     `json:"enable_export"`
	WaterHeatingPowerKW       float64  `json:"water_heating_power_kw"`
	WaterHeatingMinKWh        float64  `json:"water_heating_min_kwh"`
	WaterHeatingMaxGapHours   float64  `json:"water_heating_max_gap_hours"`
	WaterHeatedTodayKWh       float64  `json:"water_heated_today_kwh"`
	WaterComfortPenaltySEK    float64  `json:"water_comfort_penalty_sek"`
	WaterMinSpacingHours      float64  `json:"water_min_spacing_hours"`
	WaterSpacingPenaltySEK    float64  `json:"water_spacing_penalty_sek"`
	WaterBlockStartPenaltySEK float64  `json:"water_block_start_penalty_sek"`
	ForceWaterOnSlots         []int    `json:"force_water_on_slots,omitempty"`
	DeferUpToHours            float64  `json:"defer_up_to_hours"`

	Formulation Formulation `json:"formulation,omitempty"`
}

// DefaultConfig returns a Config carrying the documented defaults. Decoding a
// document over it keeps the defaults for omitted keys.
func DefaultConfig() Config {
	return Config{
		MinSoCPercent:          0,
		MaxSoCPercent:          100,
		ChargeEfficiency:       1,
		DischargeEfficiency:    1,
		TargetSoCPenaltySEK:    10.0,
		EnableExport:           true,
		WaterComfortPenaltySEK: 0.50,
		WaterMinSpacingHours:   5.0,
		WaterSpacingPenaltySEK: 0.20,
		Formulation:            FormulationRelaxed,
	}
}

// WaterHeatingEnabled reports whether heater variables are part of the model.
func (c Config) WaterHeatingEnabled() bool { return c.WaterHeatingPowerKW > 0 }

// Strict reports whether the hard-bound formulation is selected.
func (c Config) Strict() bool { return c.Formulation == FormulationStrict }

// MinSoCKWh is the lower SoC limit in kWh.
func (c Config) MinSoCKWh() float64 { return c.CapacityKWh * c.MinSoCPercent / 100.0 }

// MaxSoCKWh is the upper SoC limit in kWh.
func (c Config) MaxSoCKWh() float64 { return c.CapacityKWh * c.MaxSoCPercent / 100.0 }

// EffectiveChargeEfficiency falls back to 1 when unset.
func (c Config) EffectiveChargeEfficiency() float64 {
	if c.ChargeEfficiency <= 0 {
		return 1.0
	}
	return c.ChargeEfficiency
}

// EffectiveDischargeEfficiency falls back to 1 when unset so the recurrence
// never divides by zero.
func (c Config) EffectiveDischargeEfficiency() float64 {
	if c.DischargeEfficiency <= 0 {
		return 1.0
	}
	return c.DischargeEfficiency
}

// Validate rejects configurations that cannot describe a physical system.
func (c Config) Validate() error {
	switch c.Formulation {
	case "", FormulationRelaxed, FormulationStrict:
	default:
		return fmt.Errorf("%w: unknown formulation %q", ErrInput, c.Formulation)
	}
	nonNeg := map[string]float64{
		"capacity_kwh":           c.CapacityKWh,
		"max_charge_power_kw":    c.MaxChargePowerKW,
		"max_discharge_power_kw": c.MaxDischargePowerKW,
		"wear_cost_sek_per_kwh":  c.WearCostSEKPerKWh,
		"water_heating_power_kw": c.WaterHeatingPowerKW,
		"water_heating_min_kwh":  c.WaterHeatingMinKWh,
		"defer_up_to_hours":      c.DeferUpToHours,
	}
	for k, v := range nonNeg {
		if v < 0 {
			return fmt.Errorf("%w: %s must be >= 0, got %g", ErrInput, k, v)
		}
	}
	if c.MinSoCPercent < 0 || c.MaxSoCPercent > 100 || c.MinSoCPercent > c.MaxSoCPercent {
		return fmt.Errorf("%w: soc limits must satisfy 0 <= min (%g) <= max (%g) <= 100",
			ErrInput, c.MinSoCPercent, c.MaxSoCPercent)
	}
	if c.ChargeEfficiency > 1 || c.DischargeEfficiency > 1 {
		return fmt.Errorf("%w: efficiencies must be <= 1", ErrInput)
	}
	for name, p := range map[string]*float64{
		"max_export_power_kw":  c.MaxExportPowerKW,
		"max_import_power_kw":  c.MaxImportPowerKW,
		"grid_import_limit_kw": c.GridImportLimitKW,
	} {
		if p != nil && *p < 0 {
			return fmt.Errorf("%w: %s must be >= 0, got %g", ErrInput, name, *p)
		}
	}
	return nil
}

// Float returns a pointer to v. Handy for the optional limits.
func Float(v float64) *float64 { return &v }
