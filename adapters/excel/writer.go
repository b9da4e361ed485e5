package excel

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gocal/domain/calendar"

	"github.com/xuri/excelize/v2"
)

// Workbook is everything written for one calendarization
type Workbook struct {
	Observations []calendar.PeriodObservation
	Daily        calendar.DailySeries
	Aggregate    *calendar.AggregateSeries
	Run          calendar.Run
}

const (
	SheetDaily        = "Daily"
	SheetAggregates   = "Aggregates"
	SheetObservations = "Observations"
	SheetSummary      = "Summary"
)

// Write saves wb to path. An .xlsx file gets one sheet per section; a .csv
// file receives the daily series only.
func Write(path string, wb Workbook) error {
	if strings.ToLower(filepath.Ext(path)) == ".csv" {
		return writeDailyCSV(path, wb.Daily)
	}
	return writeWorkbook(path, wb)
}

func writeWorkbook(path string, wb Workbook) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetDaily); err != nil {
		return fmt.Errorf("failed to create daily sheet: %w", err)
	}
	if err := writeRows(f, SheetDaily, dailyRows(wb.Daily)); err != nil {
		return err
	}
	if wb.Aggregate != nil {
		if err := writeSheet(f, SheetAggregates, aggregateRows(wb.Aggregate)); err != nil {
			return err
		}
	}
	if err := writeSheet(f, SheetObservations, observationRows(wb.Observations)); err != nil {
		return err
	}
	if err := writeSheet(f, SheetSummary, summaryRows(wb.Run)); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, rows [][]interface{}) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}
	return writeRows(f, sheet, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return f.SetColWidth(sheet, "A", "B", 12)
}

func dailyRows(s calendar.DailySeries) [][]interface{} {
	header := []interface{}{"date", "value"}
	if s.HasStdev() {
		header = append(header, "stdev")
	}
	rows := [][]interface{}{header}
	for i, v := range s.Values {
		row := []interface{}{s.Date(i).Format(calendar.DateLayout), v}
		if s.HasStdev() {
			row = append(row, cellFloat(s.Stdevs[i]))
		}
		rows = append(rows, row)
	}
	return rows
}

func aggregateRows(a *calendar.AggregateSeries) [][]interface{} {
	rows := [][]interface{}{{"start", "end", "value", "stdev", "complete"}}
	for _, p := range a.Points {
		rows = append(rows, []interface{}{
			p.Start.Format(calendar.DateLayout),
			p.End.Format(calendar.DateLayout),
			p.Value,
			cellFloat(p.Stdev),
			p.Complete,
		})
	}
	return rows
}

func observationRows(obs []calendar.PeriodObservation) [][]interface{} {
	rows := [][]interface{}{{"start", "end", "value"}}
	for _, o := range obs {
		rows = append(rows, []interface{}{o.Start.Format(calendar.DateLayout), o.End.Format(calendar.DateLayout), o.Value})
	}
	return rows
}

func summaryRows(run calendar.Run) [][]interface{} {
	s := run.Summary
	return [][]interface{}{
		{"run", run.ID.String()},
		{"series", run.SeriesID.String()},
		{"frequency", string(run.Frequency)},
		{"input_hash", string(run.InputHash)},
		{"days", s.Days},
		{"observations", s.Observations},
		{"total", s.Total},
		{"mean", s.Mean},
		{"median", s.Median},
		{"min", s.Min},
		{"max", s.Max},
		{"p05", s.P05},
		{"p95", s.P95},
		{"max_residual", s.MaxResidual},
		{"mean_stdev", s.MeanStdev},
		{"max_stdev", s.MaxStdev},
	}
}

// cellFloat leaves missing deviations as empty cells
func cellFloat(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// WriteObservations saves observations alone, as CSV or as a one-sheet
// workbook, in the layout ReadObservations detects
func WriteObservations(path string, obs []calendar.PeriodObservation) error {
	if strings.ToLower(filepath.Ext(path)) == ".csv" {
		return writeCSV(path, observationRows(obs))
	}
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", SheetObservations); err != nil {
		return fmt.Errorf("failed to create observations sheet: %w", err)
	}
	if err := writeRows(f, SheetObservations, observationRows(obs)); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func writeDailyCSV(path string, s calendar.DailySeries) error {
	return writeCSV(path, dailyRows(s))
}

func writeCSV(path string, rows [][]interface{}) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	for _, row := range rows {
		record := make([]string, len(row))
		for i, cell := range row {
			switch v := cell.(type) {
			case nil:
			case float64:
				record[i] = strconv.FormatFloat(v, 'g', -1, 64)
			default:
				record[i] = fmt.Sprint(v)
			}
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
