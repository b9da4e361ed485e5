package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gocal/adapters/excel"
	"gocal/domain/calendar"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	content := "start,end,value\n2021-01-01,2021-02-01,310\n2021-02-01,2021-03-01,280\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestCalendarizeCommand(t *testing.T) {
	out, err := execute(t, "calendarize", writeInput(t), "--stdev")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 60)
	assert.Contains(t, lines[0], "stdev")
	assert.Contains(t, lines[1], "2021-01-01")
	assert.Contains(t, lines[1], "10.0000")
}

func TestCalendarizeCommand_Out(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "result.xlsx")
	out, err := execute(t, "calendarize", writeInput(t), "--freq", "monthly", "--out", outPath)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 59 days")

	obs, err := excel.ReadObservations(excel.ExcelConfig{FilePath: outPath, Sheet: excel.SheetObservations})
	require.NoError(t, err)
	assert.Len(t, obs, 2)
}

func TestAggregateCommand(t *testing.T) {
	out, err := execute(t, "aggregate", writeInput(t), "--freq", "weekly", "--json")
	require.NoError(t, err)

	var agg calendar.AggregateSeries
	require.NoError(t, json.Unmarshal([]byte(out), &agg))
	assert.Equal(t, calendar.FrequencyWeekly, agg.Frequency)
	assert.Len(t, agg.Points, 9)
	assert.False(t, agg.Points[0].Complete)
	assert.InDelta(t, 70.0, agg.Points[1].Value, 1e-6)
}

func TestAggregateCommand_Span(t *testing.T) {
	out, err := execute(t, "aggregate", writeInput(t), "--start", "2021-01-01", "--end", "2021-04-01")
	require.NoError(t, err)
	assert.Contains(t, out, "2021-03-01")
	assert.Contains(t, out, "310.0000")
}

func TestReportCommand(t *testing.T) {
	out, err := execute(t, "report", writeInput(t), "--freq", "quarterly", "--stdev")
	require.NoError(t, err)
	assert.Contains(t, out, "## Quarterly aggregates")
	assert.Contains(t, out, "mean / max stdev")

	out, err = execute(t, "report", writeInput(t), "--html")
	require.NoError(t, err)
	assert.Contains(t, out, "<table>")
}

func TestCommandErrors(t *testing.T) {
	in := writeInput(t)

	_, err := execute(t, "aggregate", in, "--freq", "fortnightly")
	assert.Error(t, err)

	_, err = execute(t, "calendarize", in, "--weights", "1,2,3")
	assert.Error(t, err)

	_, err = execute(t, "calendarize", in, "--start", "2021-01-01")
	assert.Error(t, err)

	_, err = execute(t, "calendarize", filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)

	_, err = execute(t, "calendarize")
	assert.Error(t, err)
}

func TestGenerateThenCalendarize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synthetic.csv")
	out, err := execute(t, "generate", path, "--start", "2023-01-01", "--days", "90", "--seed", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "observations")

	obs, err := excel.ReadObservations(excel.DefaultExcelConfig(path))
	require.NoError(t, err)
	require.NotEmpty(t, obs)

	out, err = execute(t, "aggregate", path, "--freq", "monthly", "--json")
	require.NoError(t, err)
	var agg calendar.AggregateSeries
	require.NoError(t, json.Unmarshal([]byte(out), &agg))
	require.True(t, agg.Available)
	for i, o := range obs {
		if i < len(agg.Points) && agg.Points[i].Complete {
			assert.InDelta(t, o.Value, agg.Points[i].Value, 1e-6*(1+o.Value))
		}
	}
}
