package metrics

import (
	"time"

	"github.com/kilianp07/hems/core/model"
)

// PlanRecord describes one finished planning run.
type PlanRecord struct {
	RunID       string
	Time        time.Time
	Formulation model.Formulation
	Input       model.Input
	Result      model.Result
}

// MetricsSink records planning runs for observability purposes.
type MetricsSink interface {
	RecordPlan(rec PlanRecord) error
}

// PlanFailure captures a run that did not produce a schedule.
type PlanFailure struct {
	RunID  string
	Time   time.Time
	Stage  string
	Status string
	Err    error
}

// FailureRecorder is implemented by sinks able to record failed runs.
type FailureRecorder interface {
	RecordPlanFailure(ev PlanFailure) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordPlan(PlanRecord) error         { return nil }
func (NopSink) RecordPlanFailure(PlanFailure) error { return nil }

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordPlan forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordPlan(rec PlanRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordPlan(rec); err != nil {
			return err
		}
	}
	return nil
}

// RecordPlanFailure forwards failures when supported by the sink.
func (m *MultiSink) RecordPlanFailure(ev PlanFailure) error {
	for _, s := range m.Sinks {
		if fr, ok := s.(FailureRecorder); ok {
			if err := fr.RecordPlanFailure(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes every sink holding resources.
func (m *MultiSink) Close() error {
	var first error
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
