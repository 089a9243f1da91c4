package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/hems/core/metrics"
	"github.com/kilianp07/hems/infra/logger"
)

// InfluxConfig holds the connection settings of an InfluxSink.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes planned schedules to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordPlan writes one plan_run point and one planned_slot point per slot,
// timestamped at the slot start so the schedule can be graphed as a series.
func (s *InfluxSink) RecordPlan(rec coremetrics.PlanRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res := rec.Result
	run := write.NewPointWithMeasurement("plan_run").
		AddTag("run_id", rec.RunID).
		AddTag("status", res.StatusMsg).
		AddTag("formulation", string(rec.Formulation)).
		AddField("slots", len(res.Slots)).
		AddField("total_cost_sek", round3(res.TotalCostSEK)).
		AddField("solve_time_ms", round3(res.SolveTimeMS)).
		SetTime(rec.Time)
	if res.Stats != nil {
		run = run.AddField("nodes", res.Stats.Nodes).
			AddField("variables", res.Stats.Variables)
	}
	points := []*write.Point{run}
	for _, sl := range res.Slots {
		p := write.NewPointWithMeasurement("planned_slot").
			AddTag("run_id", rec.RunID).
			AddField("charge_kwh", round3(sl.ChargeKWh)).
			AddField("discharge_kwh", round3(sl.DischargeKWh)).
			AddField("grid_import_kwh", round3(sl.GridImportKWh)).
			AddField("grid_export_kwh", round3(sl.GridExportKWh)).
			AddField("soc_kwh", round3(sl.SoCKWh)).
			AddField("cost_sek", round3(sl.CostSEK)).
			AddField("water_heat_kw", round3(sl.WaterHeatKW)).
			SetTime(sl.Start)
		points = append(points, p)
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordPlanFailure records a run that produced no schedule.
func (s *InfluxSink) RecordPlanFailure(ev coremetrics.PlanFailure) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msg := ""
	if ev.Err != nil {
		msg = ev.Err.Error()
	}
	p := write.NewPointWithMeasurement("plan_failure").
		AddTag("run_id", ev.RunID).
		AddTag("stage", ev.Stage).
		AddField("status", ev.Status).
		AddField("error", msg).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the HTTP client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
