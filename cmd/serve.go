package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/hems/api/plan"
	"github.com/kilianp07/hems/app"
	"github.com/kilianp07/hems/infra/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the planner over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.New("server")
	runner, err := app.New(appCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := runner.Close(); err != nil {
			log.Errorf("runner close: %v", err)
		}
	}()

	var history plan.History
	if h, ok := runner.History(); ok {
		history = h
	}
	srv := plan.NewServer(appCfg.Server.Addr, runner, history, plan.ServerOptions{
		AllowedOrigins: appCfg.Server.AllowedOrigins,
		MaxBodyBytes:   appCfg.Server.MaxBodyBytes,
		Metrics:        runner.MetricsHandler(),
		Release:        appCfg.Logging.Level != "debug",
	})

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
