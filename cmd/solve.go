package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kilianp07/hems/app"
	"github.com/kilianp07/hems/core/model"
	"github.com/kilianp07/hems/internal/exitcode"
	"github.com/kilianp07/hems/pkg/export"
)

var (
	solveStrict bool
	solveFormat string
	solveChart  string
)

var solveCmd = &cobra.Command{
	Use:   "solve <input> [output]",
	Short: "Plan one input document",
	Long: `Plan one input document and write the schedule.

Without an output path a summary is printed to stdout. The output format is
taken from --format, or from the output extension (.csv, otherwise JSON).`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSolve,
}

func init() {
	solveCmd.Flags().BoolVar(&solveStrict, "strict", false, "enforce every limit as a hard bound, overriding planner.formulation")
	solveCmd.Flags().StringVar(&solveFormat, "format", "", "output format: json or csv")
	solveCmd.Flags().StringVar(&solveChart, "chart", "", "also write an HTML chart to this path")
	rootCmd.AddCommand(solveCmd)
}

func runSolve(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(args)
	if err != nil {
		return exitcode.New(err, exitcode.Input)
	}
	doc, err := export.ReadDocument(args[0])
	if err != nil {
		return exitcode.New(err, exitcode.Input)
	}

	runner, err := app.New(appCfg)
	if err != nil {
		return err
	}
	defer runner.Close()
	// The flag outranks planner.formulation from the config file.
	if solveStrict {
		runner.SetFormulation(model.FormulationStrict)
	}

	run, planErr := runner.Plan(cmd.Context(), doc)
	if planErr != nil && exitcode.GetCode(planErr) != exitcode.Sink {
		return planErr
	}

	if len(args) == 1 {
		fmt.Fprintf(cmd.OutOrStdout(), "Run:             %s\n", run.ID)
		if err := export.WriteSummary(cmd.OutOrStdout(), run.Result); err != nil {
			return err
		}
	} else if err := writeFile(args[1], func(w io.Writer) error {
		if format == "csv" {
			return export.WriteCSV(w, export.Rows(run.Result, doc.Config, doc.Input.InitialSoCKWh))
		}
		return export.WriteJSON(w, run.Result)
	}); err != nil {
		return exitcode.New(fmt.Errorf("write output: %w", err), exitcode.Sink)
	}

	if solveChart != "" {
		rows := export.Rows(run.Result, doc.Config, doc.Input.InitialSoCKWh)
		if err := writeFile(solveChart, func(w io.Writer) error {
			return export.RenderChart(w, rows, chartTitle(args[0]))
		}); err != nil {
			return exitcode.New(fmt.Errorf("write chart: %w", err), exitcode.Sink)
		}
	}
	return planErr
}

func outputFormat(args []string) (string, error) {
	f := strings.ToLower(solveFormat)
	if f == "" && len(args) == 2 && strings.EqualFold(filepath.Ext(args[1]), ".csv") {
		f = "csv"
	}
	switch f {
	case "", "json":
		return "json", nil
	case "csv":
		return "csv", nil
	default:
		return "", fmt.Errorf("unknown output format %q", solveFormat)
	}
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f)
}

func chartTitle(input string) string {
	return "hems schedule: " + filepath.Base(input)
}
