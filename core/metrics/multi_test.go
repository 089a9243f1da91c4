package metrics

import (
	"errors"
	"testing"
)

type recordSink struct {
	count  int
	closed bool
	err    error
}

func (r *recordSink) RecordPlan(PlanRecord) error {
	r.count++
	return r.err
}

func (r *recordSink) RecordPlanFailure(PlanFailure) error {
	r.count++
	return nil
}

func (r *recordSink) Close() error {
	r.closed = true
	return nil
}

// TestMultiSink ensures records are forwarded to all sinks.
func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &recordSink{}
	m := NewMultiSink(s1, s2, NopSink{})
	if err := m.RecordPlan(PlanRecord{RunID: "r"}); err != nil {
		t.Fatalf("record plan: %v", err)
	}
	if err := m.RecordPlanFailure(PlanFailure{RunID: "r"}); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	if s1.count != 2 || s2.count != 2 {
		t.Fatalf("records not forwarded")
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !s1.closed || !s2.closed {
		t.Fatalf("sinks not closed")
	}
}

func TestMultiSinkStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	s1 := &recordSink{err: boom}
	s2 := &recordSink{}
	if err := NewMultiSink(s1, s2).RecordPlan(PlanRecord{}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if s2.count != 0 {
		t.Fatalf("second sink should not be called")
	}
}
