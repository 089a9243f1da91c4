package metrics

import (
	"net/http"

	coremetrics "github.com/kilianp07/hems/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PromSink records planning runs in Prometheus metrics.
type PromSink struct {
	gatherer prometheus.Gatherer
	textfile string

	runs      *prometheus.CounterVec
	failures  *prometheus.CounterVec
	solveTime prometheus.Histogram
	nodes     prometheus.Histogram
	cost      *prometheus.GaugeVec
	energy    *prometheus.GaugeVec
	modelSize *prometheus.GaugeVec
}

// PromConfig configures a PromSink.
type PromConfig struct {
	// Textfile, when set, receives the registry in text exposition format
	// after every recorded run, for node_exporter's textfile collector.
	Textfile string `json:"textfile"`
}

// NewPromSink registers planner metrics on a private registry.
func NewPromSink(cfg PromConfig) (*PromSink, error) {
	reg := prometheus.NewRegistry()
	return NewPromSinkWithRegistry(cfg, reg, reg)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer and a nil
// gatherer to the global gatherer.
func NewPromSinkWithRegistry(cfg PromConfig, reg prometheus.Registerer, g prometheus.Gatherer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	s := &PromSink{
		gatherer: g,
		textfile: cfg.Textfile,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hems_plan_runs_total",
			Help: "Planning runs by solver status and formulation",
		}, []string{"status", "formulation"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hems_plan_failures_total",
			Help: "Planning runs that produced no schedule, by stage",
		}, []string{"stage"}),
		solveTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hems_solve_duration_seconds",
			Help:    "Wall time spent in the MILP solver",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		nodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hems_solver_nodes",
			Help:    "Branch and bound nodes explored per run",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		cost: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hems_plan_cost_sek",
			Help: "Objective components of the last schedule",
		}, []string{"component"}),
		energy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hems_plan_energy_kwh",
			Help: "Planned energy over the horizon of the last schedule",
		}, []string{"flow"}),
		modelSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hems_model_size",
			Help: "Size of the last optimisation model",
		}, []string{"kind"}),
	}

	var err error
	if s.runs, err = register(reg, s.runs); err != nil {
		return nil, err
	}
	if s.failures, err = register(reg, s.failures); err != nil {
		return nil, err
	}
	if s.solveTime, err = register(reg, s.solveTime); err != nil {
		return nil, err
	}
	if s.nodes, err = register(reg, s.nodes); err != nil {
		return nil, err
	}
	if s.cost, err = register(reg, s.cost); err != nil {
		return nil, err
	}
	if s.energy, err = register(reg, s.energy); err != nil {
		return nil, err
	}
	if s.modelSize, err = register(reg, s.modelSize); err != nil {
		return nil, err
	}
	return s, nil
}

// register adds c to reg, reusing an identical collector that is already
// registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordPlan updates counters and last-run gauges.
func (s *PromSink) RecordPlan(rec coremetrics.PlanRecord) error {
	res := rec.Result
	s.runs.WithLabelValues(res.StatusMsg, string(rec.Formulation)).Inc()
	s.solveTime.Observe(res.SolveTimeMS / 1000)

	var imp, exp, ch, dis float64
	for _, sl := range res.Slots {
		imp += sl.GridImportKWh
		exp += sl.GridExportKWh
		ch += sl.ChargeKWh
		dis += sl.DischargeKWh
	}
	s.energy.WithLabelValues("import").Set(imp)
	s.energy.WithLabelValues("export").Set(exp)
	s.energy.WithLabelValues("charge").Set(ch)
	s.energy.WithLabelValues("discharge").Set(dis)

	s.cost.WithLabelValues("total").Set(res.TotalCostSEK)
	if b := res.Breakdown; b != nil {
		s.cost.WithLabelValues("energy").Set(b.EnergySEK)
		s.cost.WithLabelValues("wear").Set(b.WearSEK)
		s.cost.WithLabelValues("terminal_value").Set(b.TerminalValueSEK)
		s.cost.WithLabelValues("penalties").Set(b.SoCShortfallSEK + b.CurtailmentSEK + b.LoadSheddingSEK +
			b.ImportBreachSEK + b.TargetDeviationSEK + b.ComfortGapSEK + b.BlockStartSEK + b.RampingSEK)
	}
	if st := res.Stats; st != nil {
		s.nodes.Observe(float64(st.Nodes))
		s.modelSize.WithLabelValues("variables").Set(float64(st.Variables))
		s.modelSize.WithLabelValues("constraints").Set(float64(st.Constraints))
		s.modelSize.WithLabelValues("binaries").Set(float64(st.Binaries))
	}
	return s.flush()
}

// RecordPlanFailure counts a failed run.
func (s *PromSink) RecordPlanFailure(ev coremetrics.PlanFailure) error {
	s.failures.WithLabelValues(ev.Stage).Inc()
	return s.flush()
}

// Handler exposes the sink's registry over HTTP.
func (s *PromSink) Handler() http.Handler {
	return promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})
}

func (s *PromSink) flush() error {
	if s.textfile == "" {
		return nil
	}
	return prometheus.WriteToTextfile(s.textfile, s.gatherer)
}
