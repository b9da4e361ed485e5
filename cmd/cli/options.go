package main

import (
	"context"
	"fmt"

	"gocal/adapters/excel"
	"gocal/adapters/kalman"
	"gocal/app"
	"gocal/domain/calendar"
	"gocal/internal"
	"gocal/internal/config"

	"github.com/spf13/cobra"
)

// inputOptions are the flags shared by every command that reads observations
type inputOptions struct {
	sheet        string
	inclusiveEnd bool
	freq         string
	stdev        bool
	weights      string
	start        string
	end          string
	json         bool
	maxGridDays  int
}

func (o *inputOptions) register(cmd *cobra.Command, defaultFreq calendar.Frequency) {
	f := cmd.Flags()
	f.StringVar(&o.sheet, "sheet", "", "Worksheet to read (default: first sheet)")
	f.BoolVar(&o.inclusiveEnd, "inclusive-end", false, "End dates name the last day of each period")
	f.StringVar(&o.freq, "freq", string(defaultFreq), "Aggregation frequency: daily|weekly|monthly|quarterly|half-yearly|yearly")
	f.BoolVar(&o.stdev, "stdev", false, "Compute standard deviations")
	f.StringVar(&o.weights, "weights", "", "Comma separated Monday-first day-of-week weights")
	f.StringVar(&o.start, "start", "", "First day of the output span (YYYY-MM-DD)")
	f.StringVar(&o.end, "end", "", "Day after the last day of the output span (YYYY-MM-DD)")
	f.BoolVar(&o.json, "json", false, "Print JSON instead of a table")
	f.IntVar(&o.maxGridDays, "max-days", 36600, "Refuse grids longer than this many days")
}

func (o *inputOptions) request(path string) (app.CalendarizeRequest, error) {
	cfg := excel.DefaultExcelConfig(path)
	cfg.Sheet = o.sheet
	cfg.InclusiveEnd = o.inclusiveEnd
	obs, err := excel.ReadObservations(cfg)
	if err != nil {
		return app.CalendarizeRequest{}, err
	}

	req := app.CalendarizeRequest{Observations: obs, WithStdev: o.stdev}
	if o.freq != "" {
		if req.Frequency, err = calendar.ParseFrequency(o.freq); err != nil {
			return req, err
		}
	}
	if req.Weights, err = config.ParseWeights(o.weights); err != nil {
		return req, err
	}
	if o.start != "" || o.end != "" {
		if o.start == "" || o.end == "" {
			return req, fmt.Errorf("--start and --end must be given together")
		}
		var span calendar.Span
		if span.Start, err = calendar.ParseDay(o.start); err != nil {
			return req, err
		}
		if span.End, err = calendar.ParseDay(o.end); err != nil {
			return req, err
		}
		req.Span = &span
	}
	return req, nil
}

func (o *inputOptions) run(ctx context.Context, path string) (*app.CalendarizeResult, error) {
	req, err := o.request(path)
	if err != nil {
		return nil, err
	}
	logger := internal.NewDefaultLogger()
	svc := app.NewCalendarizationService(kalman.NewSmoother(logger), nil, nil, app.ServiceConfig{
		MaxConcurrency: 1,
		MaxGridDays:    o.maxGridDays,
	}, logger)
	if ctx == nil {
		ctx = context.Background()
	}
	return svc.Calendarize(ctx, req)
}
