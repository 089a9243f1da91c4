package model

import (
	"fmt"
	"time"
)

// DefaultSlotLength is applied when a slot arrives without an end time.
const DefaultSlotLength = 15 * time.Minute

// Slot is one forecast interval [Start, End).
type Slot struct {
	Start             time.Time `json:"start_time"`
	End               time.Time `json:"end_time"`
	LoadKWh           float64   `json:"load_kwh"`
	PVKWh             float64   `json:"pv_kwh"`
	ImportPriceSEKKWh float64   `json:"import_price_sek_kwh"`
	ExportPriceSEKKWh float64   `json:"export_price_sek_kwh"`
}

// Duration returns End - Start.
func (s Slot) Duration() time.Duration { return s.End.Sub(s.Start) }

// Input is the planning horizon: chronologically ordered slots plus the
// battery state at the start of slot 0.
type Input struct {
	Slots         []Slot  `json:"slots"`
	InitialSoCKWh float64 `json:"initial_soc_kwh"`
}

// Normalize fills missing end times with DefaultSlotLength.
func (in *Input) Normalize() {
	for i := range in.Slots {
		if in.Slots[i].End.IsZero() {
			in.Slots[i].End = in.Slots[i].Start.Add(DefaultSlotLength)
		}
	}
}

// SlotHours validates the horizon and returns the common slot length in
// hours. An empty horizon yields 0 and no error.
func (in Input) SlotHours() (float64, error) {
	if len(in.Slots) == 0 {
		return 0, nil
	}
	d := in.Slots[0].Duration()
	if d <= 0 {
		return 0, fmt.Errorf("%w: slot 0 has non-positive duration %s", ErrInvalidHorizon, d)
	}
	for i, s := range in.Slots[1:] {
		if s.Duration() != d {
			return 0, fmt.Errorf("%w: slot %d lasts %s, expected %s", ErrInvalidHorizon, i+1, s.Duration(), d)
		}
	}
	return d.Hours(), nil
}
