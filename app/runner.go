// Package app wires the planner to its sinks: every run gets an id, is
// recorded by the metrics sinks and, when a broker is configured, published
// over MQTT.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kilianp07/hems/config"
	coremetrics "github.com/kilianp07/hems/core/metrics"
	"github.com/kilianp07/hems/core/model"
	coremon "github.com/kilianp07/hems/core/monitoring"
	coremqtt "github.com/kilianp07/hems/core/mqtt"
	"github.com/kilianp07/hems/core/planner"
	"github.com/kilianp07/hems/infra/logger"
	"github.com/kilianp07/hems/infra/metrics"
	"github.com/kilianp07/hems/infra/mqtt"
	"github.com/kilianp07/hems/infra/solver"
	"github.com/kilianp07/hems/internal/exitcode"
	"github.com/kilianp07/hems/pkg/export"
)

// Failure stages reported to the sinks.
const (
	StageBuild   = "build"
	StageSolve   = "solve"
	StagePublish = "publish"
)

// Run is the outcome of one planning request.
type Run struct {
	ID     string
	Time   time.Time
	Result model.Result
}

// Runner plans documents and hands the schedules to the sinks.
type Runner struct {
	planner   *planner.Planner
	sink      coremetrics.MetricsSink
	publisher coremqtt.SchedulePublisher
	log       logger.Logger
	now       func() time.Time
}

// NewRunner assembles a Runner from its parts. sink and publisher may be nil.
func NewRunner(p *planner.Planner, sink coremetrics.MetricsSink, publisher coremqtt.SchedulePublisher, log logger.Logger) *Runner {
	if sink == nil {
		sink = coremetrics.NopSink{}
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Runner{planner: p, sink: sink, publisher: publisher, log: log, now: time.Now}
}

// New builds the solver, planner, sinks and publisher described by cfg.
func New(cfg *config.Config) (*Runner, error) {
	s, err := solver.NewSolver(cfg.Solver, logger.New("solver"))
	if err != nil {
		return nil, exitcode.New(fmt.Errorf("solver: %w", err), exitcode.Input)
	}
	p := planner.New(s, logger.New("planner"))
	p.SetFormulation(cfg.Planner.Formulation)

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, exitcode.New(fmt.Errorf("metrics sinks: %w", err), exitcode.Input)
	}
	var pub coremqtt.SchedulePublisher
	if cfg.MQTTEnabled() {
		pp, err := mqtt.NewPahoPublisher(cfg.MQTT)
		if err != nil {
			closeSink(sink)
			return nil, exitcode.New(fmt.Errorf("mqtt publisher: %w", err), exitcode.Sink)
		}
		pub = pp
	}
	return NewRunner(p, sink, pub, logger.New("runner")), nil
}

// SetFormulation overrides the formulation of every following run, including
// one set by the application configuration.
func (r *Runner) SetFormulation(f model.Formulation) { r.planner.SetFormulation(f) }

// Plan solves one document. A non-nil error carries an exit code; when it
// comes from a sink or the publisher the returned Run still holds the
// schedule.
func (r *Runner) Plan(ctx context.Context, doc export.Document) (Run, error) {
	run := Run{ID: uuid.NewString(), Time: r.now()}
	if err := ctx.Err(); err != nil {
		return run, exitcode.New(err, exitcode.Input)
	}

	res, err := r.planner.Plan(doc.Config, doc.Input)
	run.Result = res
	if err != nil {
		stage := StageSolve
		if errors.Is(err, model.ErrInput) || errors.Is(err, model.ErrInvalidHorizon) {
			stage = StageBuild
		}
		r.fail(run, stage, res.StatusMsg, err)
		return run, exitcode.New(err, exitcode.GetCode(err))
	}

	formulation := doc.Config.Formulation
	if f := r.planner.Formulation(); f != "" {
		formulation = f
	}
	if formulation == "" {
		formulation = model.FormulationRelaxed
	}
	var sinkErr error
	if err := r.sink.RecordPlan(coremetrics.PlanRecord{
		RunID:       run.ID,
		Time:        run.Time,
		Formulation: formulation,
		Input:       doc.Input,
		Result:      res,
	}); err != nil {
		r.log.Errorf("record run %s: %v", run.ID, err)
		coremon.CaptureException(err, map[string]string{"module": "metrics", "run_id": run.ID})
		sinkErr = fmt.Errorf("record plan: %w", err)
	}
	if r.publisher != nil {
		if err := r.publisher.PublishSchedule(run.ID, res); err != nil {
			r.fail(run, StagePublish, res.StatusMsg, err)
			sinkErr = errors.Join(sinkErr, fmt.Errorf("publish schedule: %w", err))
		}
	}
	if sinkErr != nil {
		return run, exitcode.New(sinkErr, exitcode.Sink)
	}
	r.log.Infof("run %s: %d slots, %s, total %.4f SEK", run.ID, len(res.Slots), res.StatusMsg, res.TotalCostSEK)
	return run, nil
}

func (r *Runner) fail(run Run, stage, status string, err error) {
	r.log.Errorf("run %s failed at %s: %v", run.ID, stage, err)
	coremon.CaptureException(err, map[string]string{"run_id": run.ID, "stage": stage})
	fr, ok := r.sink.(coremetrics.FailureRecorder)
	if !ok {
		return
	}
	if ferr := fr.RecordPlanFailure(coremetrics.PlanFailure{
		RunID:  run.ID,
		Time:   run.Time,
		Stage:  stage,
		Status: status,
		Err:    err,
	}); ferr != nil {
		r.log.Warnf("record failure of run %s: %v", run.ID, ferr)
	}
}

// MetricsHandler serves the Prometheus sink when one is configured and the
// default registry otherwise.
func (r *Runner) MetricsHandler() http.Handler {
	if h, ok := findSink[interface{ Handler() http.Handler }](r.sink); ok {
		return h.Handler()
	}
	return promhttp.Handler()
}

// History returns the SQLite plan store when one is configured.
func (r *Runner) History() (*metrics.SQLiteStore, bool) {
	return findSink[*metrics.SQLiteStore](r.sink)
}

// Close releases sinks and disconnects the publisher.
func (r *Runner) Close() error {
	if d, ok := r.publisher.(interface{ Disconnect() }); ok {
		d.Disconnect()
	}
	return closeSink(r.sink)
}

func findSink[T any](s coremetrics.MetricsSink) (T, bool) {
	if v, ok := s.(T); ok {
		return v, true
	}
	if m, ok := s.(*coremetrics.MultiSink); ok {
		for _, sub := range m.Sinks {
			if v, ok := findSink[T](sub); ok {
				return v, true
			}
		}
	}
	var zero T
	return zero, false
}

func closeSink(s coremetrics.MetricsSink) error {
	if c, ok := s.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
