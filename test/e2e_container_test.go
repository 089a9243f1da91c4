//go:build !no_containers

package test

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	coremetrics "github.com/kilianp07/hems/core/metrics"
	"github.com/kilianp07/hems/core/model"
	"github.com/kilianp07/hems/core/planner"
	"github.com/kilianp07/hems/infra/metrics"
	"github.com/kilianp07/hems/infra/mqtt"
	"github.com/kilianp07/hems/infra/solver"
	"github.com/kilianp07/hems/test/util"
)

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skipf("docker not installed: %v", err)
	}
}

func planFixture(t *testing.T) model.Result {
	t.Helper()
	cfg := model.DefaultConfig()
	cfg.CapacityKWh = 10
	cfg.MaxChargePowerKW = 4
	cfg.MaxDischargePowerKW = 4
	cfg.WearCostSEKPerKWh = 0.01
	cfg.WaterHeatingPowerKW = 3
	cfg.WaterHeatingMinKWh = 3
	start := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	prices := []float64{0.5, 2.0, 0.3, 2.5}
	in := model.Input{InitialSoCKWh: 2}
	for i, p := range prices {
		s := start.Add(time.Duration(i) * time.Hour)
		in.Slots = append(in.Slots, model.Slot{Start: s, End: s.Add(time.Hour), LoadKWh: 1, ImportPriceSEKKWh: p, ExportPriceSEKKWh: p / 2})
	}
	res, err := planner.New(solver.New(solver.Config{}, nil), nil).Plan(cfg, in)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	return res
}

func TestE2E_PublishScheduleToMosquitto(t *testing.T) {
	requireDocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker, cleanup, err := util.StartMosquitto(ctx)
	if err != nil {
		t.Skipf("unable to start mosquitto: %v", err)
	}
	defer cleanup()

	received := make(chan paho.Message, 4)
	sub := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("e2e-sub"))
	if tok := sub.Connect(); tok.Wait() && tok.Error() != nil {
		t.Fatalf("subscriber connect: %v", tok.Error())
	}
	defer sub.Disconnect(100)
	if tok := sub.Subscribe("e2e/plan/#", 1, func(_ paho.Client, m paho.Message) { received <- m }); tok.Wait() && tok.Error() != nil {
		t.Fatalf("subscribe: %v", tok.Error())
	}

	pub, err := mqtt.NewPahoPublisher(mqtt.Config{Broker: broker, ClientID: "e2e-pub", Topic: "e2e/plan", QoS: 1})
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	defer pub.Disconnect()

	res := planFixture(t)
	if err := pub.PublishSchedule("e2e-run", res); err != nil {
		t.Fatalf("publish: %v", err)
	}

	got := map[string][]byte{}
	for len(got) < 2 {
		select {
		case m := <-received:
			got[m.Topic()] = m.Payload()
		case <-ctx.Done():
			t.Fatalf("timed out, received %d messages", len(got))
		}
	}
	var msg mqtt.ScheduleMessage
	if err := json.Unmarshal(got["e2e/plan"], &msg); err != nil {
		t.Fatalf("decode schedule: %v", err)
	}
	if msg.RunID != "e2e-run" || len(msg.Slots) != len(res.Slots) {
		t.Fatalf("unexpected schedule %+v", msg)
	}
	var sp mqtt.Setpoint
	if err := json.Unmarshal(got["e2e/plan/current"], &sp); err != nil {
		t.Fatalf("decode setpoint: %v", err)
	}
	if !sp.Start.Equal(res.Slots[0].Start) {
		t.Fatalf("setpoint start %v, want %v", sp.Start, res.Slots[0].Start)
	}
}

func TestE2E_InfluxSinkWritesSchedule(t *testing.T) {
	requireDocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	inst, cleanup, err := util.StartInflux(ctx)
	if err != nil {
		t.Skipf("unable to start influx: %v", err)
	}
	defer cleanup()

	sink := metrics.NewInfluxSinkWithFallback(metrics.InfluxConfig{URL: inst.URL, Token: inst.Token, Org: inst.Org, Bucket: inst.Bucket})
	if _, ok := sink.(coremetrics.NopSink); ok {
		t.Fatalf("influx health check failed")
	}
	res := planFixture(t)
	rec := coremetrics.PlanRecord{RunID: "e2e-influx", Time: time.Now(), Formulation: model.FormulationRelaxed, Result: res}
	if err := sink.RecordPlan(rec); err != nil {
		t.Fatalf("record plan: %v", err)
	}

	client := influxdb2.NewClient(inst.URL, inst.Token)
	defer client.Close()
	flux := fmt.Sprintf(`from(bucket:"%s")
  |> range(start: 2025-01-14T00:00:00Z)
  |> filter(fn: (r) => r._measurement == "planned_slot" and r._field == "soc_kwh" and r.run_id == "e2e-influx")`, inst.Bucket)
	table, err := client.QueryAPI(inst.Org).Query(ctx, flux)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer table.Close()
	count := 0
	for table.Next() {
		count++
	}
	if table.Err() != nil {
		t.Fatalf("query result: %v", table.Err())
	}
	if count != len(res.Slots) {
		t.Fatalf("got %d planned_slot points, want %d", count, len(res.Slots))
	}
}
