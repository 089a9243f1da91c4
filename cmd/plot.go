package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kilianp07/hems/app"
	"github.com/kilianp07/hems/internal/exitcode"
	"github.com/kilianp07/hems/pkg/export"
)

var plotCmd = &cobra.Command{
	Use:   "plot <input> <output.html>",
	Short: "Plan an input document and render the schedule as an HTML chart",
	Args:  cobra.ExactArgs(2),
	RunE:  runPlot,
}

func init() {
	rootCmd.AddCommand(plotCmd)
}

func runPlot(cmd *cobra.Command, args []string) error {
	doc, err := export.ReadDocument(args[0])
	if err != nil {
		return exitcode.New(err, exitcode.Input)
	}
	runner, err := app.New(appCfg)
	if err != nil {
		return err
	}
	defer runner.Close()

	run, planErr := runner.Plan(cmd.Context(), doc)
	if planErr != nil && exitcode.GetCode(planErr) != exitcode.Sink {
		return planErr
	}
	rows := export.Rows(run.Result, doc.Config, doc.Input.InitialSoCKWh)
	if err := writeFile(args[1], func(w io.Writer) error {
		return export.RenderChart(w, rows, chartTitle(args[0]))
	}); err != nil {
		return exitcode.New(fmt.Errorf("write chart: %w", err), exitcode.Sink)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d slots)\n", args[1], len(rows))
	return planErr
}
