// Package cmd implements the hems command line.
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/hems/config"
	coremon "github.com/kilianp07/hems/core/monitoring"
	"github.com/kilianp07/hems/infra/logger"
	"github.com/kilianp07/hems/infra/monitoring"
	"github.com/kilianp07/hems/internal/exitcode"
)

var (
	cfgPath  string
	logLevel string
	appCfg   *config.Config
)

var rootCmd = &cobra.Command{
	Use:               "hems",
	Short:             "Cost-optimal battery, grid and water heater schedules",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "application configuration file (yaml or json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")
}

// Execute runs the CLI.
func Execute() error {
	defer coremon.Flush(2 * time.Second)
	defer coremon.Recover()
	return rootCmd.Execute()
}

func setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return exitcode.New(fmt.Errorf("load config: %w", err), exitcode.Input)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := logger.Configure(cfg.Logging); err != nil {
		return exitcode.New(err, exitcode.Input)
	}
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return exitcode.New(fmt.Errorf("sentry: %w", err), exitcode.Input)
	}
	coremon.Init(mon)
	appCfg = cfg
	return nil
}
