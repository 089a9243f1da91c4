package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kilianp07/hems/core/model"
	"github.com/kilianp07/hems/infra/solver"
)

//nolint:gocyclo
func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `solver:
  backend: branch_and_bound
  max_nodes: 500
  time_limit_ms: 2500
  integrality_tolerance: 0.0001
planner:
  formulation: strict
logging:
  level: debug
  format: console
mqtt:
  broker: "tcp://localhost:1883"
  client_id: "cli"
  username: "user"
  topic: "home/plan"
  qos: 1
  retain: true
metrics:
  sinks:
    - type: "nop"
    - type: "sqlite"
      conf:
        path: "plans.db"
server:
  addr: ":9000"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"solver.backend", cfg.Solver.Backend, solver.BackendBranchAndBound},
		{"solver.max_nodes", cfg.Solver.MaxNodes, 500},
		{"solver.time_limit_ms", cfg.Solver.TimeLimitMS, 2500},
		{"solver.integrality_tolerance", cfg.Solver.IntegralityTolerance, 0.0001},
		{"solver.tolerance default", cfg.Solver.Tolerance, 1e-7},
		{"planner.formulation", cfg.Planner.Formulation, model.FormulationStrict},
		{"logging.level", cfg.Logging.Level, "debug"},
		{"logging.format", cfg.Logging.Format, "console"},
		{"mqtt.broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"mqtt.client_id", cfg.MQTT.ClientID, "cli"},
		{"mqtt.topic", cfg.MQTT.Topic, "home/plan"},
		{"mqtt.qos", cfg.MQTT.QoS, byte(1)},
		{"mqtt.retain", cfg.MQTT.Retain, true},
		{"mqtt.max_retries default", cfg.MQTT.MaxRetries, 3},
		{"metrics_sinks", len(cfg.Metrics.Sinks), 2},
		{"metrics_sink_path", cfg.Metrics.Sinks[1].Conf["path"], "plans.db"},
		{"server.addr", cfg.Server.Addr, ":9000"},
		{"mqtt_enabled", cfg.MQTTEnabled(), true},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"solver":{"max_nodes":100},"server":{"addr":":7000"}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("HEMS_SOLVER__MAX_NODES", "42")
	t.Setenv("HEMS_LOGGING__LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Solver.MaxNodes != 42 {
		t.Errorf("max_nodes = %d, want 42", cfg.Solver.MaxNodes)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("level = %s, want warn", cfg.Logging.Level)
	}
	if cfg.Server.Addr != ":7000" {
		t.Errorf("addr = %s", cfg.Server.Addr)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Solver.Backend != solver.BackendHiGHS || cfg.Solver.MaxNodes != 10000 || cfg.Server.Addr != ":8080" || cfg.Logging.Level != "info" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.MQTTEnabled() {
		t.Fatalf("mqtt should be disabled without a broker")
	}
}

func TestLoadRejects(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"bad.toml":     "x = 1",
		"formula.yaml": "planner:\n  formulation: fuzzy\n",
		"backend.yaml": "solver:\n  backend: cplex\n",
		"level.yaml":   "logging:\n  level: loud\n",
		"sentry.yaml":  "sentry:\n  traces_sample_rate: 3\n",
		"qos.yaml":     "mqtt:\n  broker: tcp://x:1883\n  qos: 5\n",
	}
	for name, body := range cases {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		if _, err := Load(path); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Errorf("expected error for missing file")
	}
}
