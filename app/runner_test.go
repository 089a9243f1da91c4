package app

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	coremetrics "github.com/kilianp07/hems/core/metrics"
	"github.com/kilianp07/hems/core/model"
	"github.com/kilianp07/hems/core/planner"
	"github.com/kilianp07/hems/infra/metrics"
	"github.com/kilianp07/hems/infra/mqtt"
	"github.com/kilianp07/hems/infra/solver"
	"github.com/kilianp07/hems/internal/exitcode"
	"github.com/kilianp07/hems/pkg/export"
)

type recordSink struct {
	plans    []coremetrics.PlanRecord
	failures []coremetrics.PlanFailure
	err      error
}

func (s *recordSink) RecordPlan(rec coremetrics.PlanRecord) error {
	s.plans = append(s.plans, rec)
	return s.err
}

func (s *recordSink) RecordPlanFailure(ev coremetrics.PlanFailure) error {
	s.failures = append(s.failures, ev)
	return nil
}

func document(load float64) export.Document {
	cfg := model.DefaultConfig()
	cfg.CapacityKWh = 0
	start := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	return export.Document{
		Config: cfg,
		Input: model.Input{Slots: []model.Slot{
			{Start: start, End: start.Add(time.Hour), LoadKWh: load, ImportPriceSEKKWh: 1},
		}},
	}
}

func newTestRunner(sink coremetrics.MetricsSink, pub *mqtt.MockPublisher) *Runner {
	p := planner.New(solver.New(solver.Config{}, nil), nil)
	if pub == nil {
		return NewRunner(p, sink, nil, nil)
	}
	return NewRunner(p, sink, pub, nil)
}

func TestRunnerPlanRecordsAndPublishes(t *testing.T) {
	sink := &recordSink{}
	pub := mqtt.NewMockPublisher()
	r := newTestRunner(sink, pub)

	run, err := r.Plan(context.Background(), document(1))
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if run.ID == "" || !run.Result.IsOptimal {
		t.Fatalf("unexpected run %+v", run)
	}
	if run.Result.TotalCostSEK != 1 {
		t.Fatalf("total %v, want 1", run.Result.TotalCostSEK)
	}
	if len(sink.plans) != 1 || sink.plans[0].RunID != run.ID {
		t.Fatalf("plan not recorded: %+v", sink.plans)
	}
	if sink.plans[0].Formulation != model.FormulationRelaxed {
		t.Fatalf("formulation %q", sink.plans[0].Formulation)
	}
	if _, ok := pub.Published[run.ID]; !ok {
		t.Fatalf("schedule not published")
	}
}

func TestRunnerSolveFailure(t *testing.T) {
	sink := &recordSink{}
	pub := mqtt.NewMockPublisher()
	r := newTestRunner(sink, pub)
	r.planner.SetFormulation(model.FormulationStrict)

	doc := document(5)
	doc.Config.MaxImportPowerKW = model.Float(1)
	run, err := r.Plan(context.Background(), doc)
	if !errors.Is(err, planner.ErrInfeasible) {
		t.Fatalf("expected ErrInfeasible, got %v", err)
	}
	if exitcode.GetCode(err) != exitcode.Solve {
		t.Fatalf("exit code %d", exitcode.GetCode(err))
	}
	if run.Result.IsOptimal || run.Result.StatusMsg != "Infeasible" {
		t.Fatalf("unexpected result %+v", run.Result)
	}
	if len(sink.failures) != 1 || sink.failures[0].Stage != StageSolve || sink.failures[0].Status != "Infeasible" {
		t.Fatalf("failure not recorded: %+v", sink.failures)
	}
	if len(pub.Published) != 0 {
		t.Fatalf("failed runs must not be published")
	}
}

func TestRunnerInputFailure(t *testing.T) {
	sink := &recordSink{}
	r := newTestRunner(sink, nil)
	doc := document(1)
	doc.Config.CapacityKWh = -1
	_, err := r.Plan(context.Background(), doc)
	if exitcode.GetCode(err) != exitcode.Input {
		t.Fatalf("exit code %d for %v", exitcode.GetCode(err), err)
	}
	if len(sink.failures) != 1 || sink.failures[0].Stage != StageBuild {
		t.Fatalf("failure not recorded: %+v", sink.failures)
	}
}

func TestRunnerSinkFailureKeepsSchedule(t *testing.T) {
	sink := &recordSink{err: errors.New("disk full")}
	pub := mqtt.NewMockPublisher()
	pub.Fail = true
	r := newTestRunner(sink, pub)

	run, err := r.Plan(context.Background(), document(1))
	if exitcode.GetCode(err) != exitcode.Sink {
		t.Fatalf("exit code %d for %v", exitcode.GetCode(err), err)
	}
	if !strings.Contains(err.Error(), "disk full") || !strings.Contains(err.Error(), "publish failed") {
		t.Fatalf("both failures should be reported: %v", err)
	}
	if !run.Result.IsOptimal || len(run.Result.Slots) != 1 {
		t.Fatalf("schedule lost: %+v", run.Result)
	}
	if len(sink.failures) != 1 || sink.failures[0].Stage != StagePublish {
		t.Fatalf("publish failure not recorded: %+v", sink.failures)
	}
}

func TestRunnerCancelledContext(t *testing.T) {
	r := newTestRunner(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Plan(ctx, document(1)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunnerFindsConfiguredSinks(t *testing.T) {
	dir := t.TempDir()
	prom, err := metrics.NewPromSink(metrics.PromConfig{})
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}
	store, err := metrics.NewSQLiteStore(filepath.Join(dir, "plans.db"))
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	r := newTestRunner(coremetrics.NewMultiSink(prom, store), nil)
	defer r.Close()

	run, err := r.Plan(context.Background(), document(2))
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	hist, ok := r.History()
	if !ok {
		t.Fatalf("history store not found")
	}
	slots, err := hist.Schedule(run.ID)
	if err != nil || len(slots) != 1 {
		t.Fatalf("schedule lookup: %v %+v", err, slots)
	}

	rec := httptest.NewRecorder()
	r.MetricsHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "hems_plan_runs_total") {
		t.Fatalf("prometheus sink not served")
	}

	plain := newTestRunner(nil, nil)
	if _, ok := plain.History(); ok {
		t.Fatalf("no history expected")
	}
}
