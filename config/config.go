// Package config loads the application configuration of the hems binary.
//
// The planner inputs (forecast slots and battery parameters) are not part of
// it: they travel in the input document of each solve. This file only holds
// process-level settings such as solver limits, sinks and endpoints.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/hems/core/metrics"
	"github.com/kilianp07/hems/core/model"
	"github.com/kilianp07/hems/infra/logger"
	"github.com/kilianp07/hems/infra/monitoring"
	"github.com/kilianp07/hems/infra/mqtt"
	"github.com/kilianp07/hems/infra/solver"
)

// EnvPrefix marks environment variables that override file values.
// HEMS_SOLVER__MAX_NODES=500 sets solver.max_nodes.
const EnvPrefix = "HEMS_"

type Config struct {
	Solver  solver.Config           `json:"solver"`
	Planner PlannerConfig           `json:"planner"`
	Logging logger.Config           `json:"logging"`
	Metrics metrics.Config          `json:"metrics"`
	Sentry  monitoring.SentryConfig `json:"sentry"`
	MQTT    mqtt.Config             `json:"mqtt"`
	Server  ServerConfig            `json:"server"`
}

// PlannerConfig holds settings applied on top of every input document.
type PlannerConfig struct {
	// Formulation, when set, overrides the formulation of each input.
	Formulation model.Formulation `json:"formulation"`
}

// Validate checks the formulation name.
func (c PlannerConfig) Validate() error {
	switch c.Formulation {
	case "", model.FormulationRelaxed, model.FormulationStrict:
		return nil
	default:
		return fmt.Errorf("planner.formulation must be relaxed or strict, got %q", c.Formulation)
	}
}

// ServerConfig configures the HTTP planning endpoint.
type ServerConfig struct {
	Addr           string   `json:"addr"`
	AllowedOrigins []string `json:"allowed_origins"`
	// MaxBodyBytes caps the size of a plan request.
	MaxBodyBytes int64 `json:"max_body_bytes"`
}

// SetDefaults fills empty fields.
func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 4 << 20
	}
}

// MQTTEnabled reports whether schedules should be published.
func (c Config) MQTTEnabled() bool { return c.MQTT.Broker != "" }

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	c.Solver.SetDefaults()
	c.Logging.SetDefaults()
	c.Server.SetDefaults()
	if c.MQTTEnabled() {
		c.MQTT.SetDefaults()
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Solver.Validate(); err != nil {
		return fmt.Errorf("solver: %w", err)
	}
	if err := c.Planner.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if err := c.Sentry.Validate(); err != nil {
		return err
	}
	if c.MQTTEnabled() {
		if err := c.MQTT.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Default returns a Config with every default applied.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// Load reads path, applies HEMS_ environment overrides, defaults and
// validation. An empty path loads defaults and the environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
