package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"text/tabwriter"

	"gocal/adapters/excel"
	"gocal/domain/calendar"
	"gocal/internal/report"
	"gocal/internal/testkit"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gocal",
		Short:         "Distribute period totals over calendar days",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(
		newCalendarizeCmd(),
		newAggregateCmd(),
		newReportCmd(),
		newGenerateCmd(),
	)
	return rootCmd
}

func newCalendarizeCmd() *cobra.Command {
	var opts inputOptions
	var out string

	cmd := &cobra.Command{
		Use:   "calendarize [file]",
		Short: "Reconstruct daily values from period observations",
		Long: `Read period observations from an .xlsx or .csv file and print the
smoothed daily series. With --out the result is written to a workbook
(Daily, Aggregates, Observations and Summary sheets) or a daily CSV.

Example: gocal calendarize sales.xlsx --freq quarterly --stdev --out daily.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := opts.run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if out != "" {
				if err := excel.Write(out, excel.Workbook{
					Observations: result.Observations,
					Daily:        result.Daily,
					Aggregate:    result.Aggregate,
					Run:          result.Run,
				}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d days to %s\n", result.Daily.Len(), out)
				return nil
			}
			if opts.json {
				return writeJSON(cmd, result)
			}
			return printDaily(cmd, result.Daily)
		},
	}
	opts.register(cmd, "")
	cmd.Flags().StringVar(&out, "out", "", "Write results to this .xlsx or .csv file")
	return cmd
}

func newAggregateCmd() *cobra.Command {
	var opts inputOptions

	cmd := &cobra.Command{
		Use:   "aggregate [file]",
		Short: "Sum the daily reconstruction over calendar periods",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := opts.run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd, result.Aggregate)
			}
			return printAggregate(cmd, result.Aggregate)
		},
	}
	opts.register(cmd, calendar.FrequencyMonthly)
	return cmd
}

func newReportCmd() *cobra.Command {
	var opts inputOptions
	var html bool

	cmd := &cobra.Command{
		Use:   "report [file]",
		Short: "Print a markdown summary of a calendarization run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := opts.run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !result.Daily.Available {
				return fmt.Errorf("%s: no observations to report on", args[0])
			}
			doc := report.Document{Title: "Calendarization of " + args[0], Run: result.Run, Aggregate: result.Aggregate}
			if html {
				_, err = cmd.OutOrStdout().Write(report.HTML(doc))
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), report.Markdown(doc))
			return err
		},
	}
	opts.register(cmd, calendar.FrequencyMonthly)
	cmd.Flags().BoolVar(&html, "html", false, "Render HTML instead of markdown")
	return cmd
}

func newGenerateCmd() *cobra.Command {
	cfg := testkit.DefaultGeneratorConfig()
	var start string
	var irregular bool

	cmd := &cobra.Command{
		Use:   "generate [out-file]",
		Short: "Write synthetic period observations for experiments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if start != "" {
				t, err := calendar.ParseDay(start)
				if err != nil {
					return err
				}
				cfg.Start = t
			}
			gen := testkit.NewGenerator(cfg)
			daily := gen.Daily()
			obs := gen.Monthly(daily)
			if irregular {
				obs = gen.Irregular(daily, 5, 40, 0.1)
			}
			if err := excel.WriteObservations(args[0], obs); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d observations to %s\n", len(obs), args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "First day (YYYY-MM-DD)")
	cmd.Flags().IntVar(&cfg.Days, "days", cfg.Days, "Number of days to simulate")
	cmd.Flags().Float64Var(&cfg.Level, "level", cfg.Level, "Initial daily level")
	cmd.Flags().Float64Var(&cfg.Drift, "drift", cfg.Drift, "Daily drift of the level")
	cmd.Flags().Float64Var(&cfg.Noise, "noise", cfg.Noise, "Standard deviation of level innovations")
	cmd.Flags().Int64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed for deterministic output")
	cmd.Flags().BoolVar(&irregular, "irregular", false, "Emit irregular periods with gaps instead of months")
	return cmd
}

func printDaily(cmd *cobra.Command, daily calendar.DailySeries) error {
	if !daily.Available {
		fmt.Fprintln(cmd.OutOrStdout(), "no observations")
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "date\tvalue\tstdev\t")
	for i, v := range daily.Values {
		stdev := "-"
		if daily.HasStdev() {
			stdev = fmt.Sprintf("%.4f", daily.Stdevs[i])
		}
		fmt.Fprintf(w, "%s\t%.4f\t%s\t\n", daily.Date(i).Format(calendar.DateLayout), v, stdev)
	}
	return w.Flush()
}

func printAggregate(cmd *cobra.Command, agg *calendar.AggregateSeries) error {
	if agg == nil || !agg.Available {
		fmt.Fprintln(cmd.OutOrStdout(), "no observations")
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "start\tend\tvalue\tstdev\tcomplete\t")
	for _, p := range agg.Points {
		stdev := "-"
		if agg.HasStdev && !math.IsNaN(p.Stdev) {
			stdev = fmt.Sprintf("%.4f", p.Stdev)
		}
		fmt.Fprintf(w, "%s\t%s\t%.4f\t%s\t%t\t\n",
			p.Start.Format(calendar.DateLayout), p.End.Format(calendar.DateLayout), p.Value, stdev, p.Complete)
	}
	return w.Flush()
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
