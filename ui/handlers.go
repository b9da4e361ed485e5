package ui

import (
	"html/template"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"gocal/adapters/excel"
	"gocal/app"
	"gocal/domain/calendar"
	"gocal/domain/core"
	"gocal/internal/errors"
	"gocal/internal/report"
)

type indexPage struct {
	Persistence bool
	Series      []*calendar.Series
	Frequencies []calendar.Frequency
	Frequency   calendar.Frequency
	Input       string
	Stdev       bool
	Error       string
}

type dailyRow struct {
	Day   time.Time
	Value float64
	Stdev float64
}

type reportPage struct {
	Title     string
	Report    template.HTML
	Series    *calendar.Series
	Runs      []*calendar.Run
	Frequency calendar.Frequency
	Daily     []dailyRow
	Truncated bool
}

type errorPage struct {
	Status  int
	Message string
}

func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	a.renderTemplate(w, http.StatusOK, "index.html", a.indexData(r, indexPage{}))
}

func (a *App) indexData(r *http.Request, page indexPage) indexPage {
	page.Persistence = a.service.PersistenceEnabled()
	page.Frequencies = calendar.Frequencies
	if page.Frequency == "" {
		page.Frequency = a.config.DefaultFrequency
	}
	if page.Persistence {
		series, err := a.service.ListSeries(r.Context(), 50, 0)
		if err != nil {
			a.logger.Warn("listing series: %v", err)
		}
		page.Series = series
	}
	return page
}

// handleCalendarize runs pasted CSV observations and renders the report
func (a *App) handleCalendarize(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		a.renderError(w, http.StatusBadRequest, err.Error())
		return
	}
	page := indexPage{
		Input: r.FormValue("observations"),
		Stdev: r.FormValue("stdev") == "on",
	}

	freq, err := a.frequency(r.FormValue("frequency"))
	if err != nil {
		page.Error = err.Error()
		a.renderTemplate(w, http.StatusBadRequest, "index.html", a.indexData(r, page))
		return
	}
	page.Frequency = freq

	obs, err := excel.ParseObservationsCSV(strings.NewReader(page.Input), excel.ExcelConfig{
		InclusiveEnd: r.FormValue("inclusive_end") == "on",
	})
	if err != nil {
		page.Error = err.Error()
		a.renderTemplate(w, http.StatusBadRequest, "index.html", a.indexData(r, page))
		return
	}

	result, err := a.service.Calendarize(r.Context(), app.CalendarizeRequest{
		Observations: obs,
		Frequency:    freq,
		WithStdev:    page.Stdev,
	})
	if err != nil {
		page.Error = err.Error()
		a.renderTemplate(w, errors.HTTPStatus(err), "index.html", a.indexData(r, page))
		return
	}
	a.renderTemplate(w, http.StatusOK, "report.html", a.reportData("Calendarization", result, nil, nil))
}

func (a *App) handleSeries(w http.ResponseWriter, r *http.Request) {
	id := core.SeriesID(chi.URLParam(r, "id"))
	freq, err := a.frequency(r.URL.Query().Get("freq"))
	if err != nil {
		a.renderError(w, http.StatusBadRequest, err.Error())
		return
	}
	withStdev, _ := strconv.ParseBool(r.URL.Query().Get("stdev"))

	series, err := a.service.GetSeries(r.Context(), id)
	if err != nil {
		a.renderError(w, errors.HTTPStatus(err), err.Error())
		return
	}
	result, err := a.service.CalendarizeSeries(r.Context(), id, freq, withStdev, nil)
	if err != nil {
		a.renderError(w, errors.HTTPStatus(err), err.Error())
		return
	}
	runs, err := a.service.ListRuns(r.Context(), id, 10)
	if err != nil {
		a.logger.Warn("listing runs of %s: %v", id, err)
	}
	a.renderTemplate(w, http.StatusOK, "report.html", a.reportData(series.Name, result, series, runs))
}

func (a *App) handleRun(w http.ResponseWriter, r *http.Request) {
	run, err := a.service.GetRun(r.Context(), core.RunID(chi.URLParam(r, "id")))
	if err != nil {
		a.renderError(w, errors.HTTPStatus(err), err.Error())
		return
	}
	doc := report.Document{Title: "Run " + run.ID.String(), Run: *run}
	a.renderTemplate(w, http.StatusOK, "report.html", reportPage{
		Title:     doc.Title,
		Report:    template.HTML(report.HTML(doc)),
		Frequency: run.Frequency,
	})
}

func (a *App) reportData(title string, result *app.CalendarizeResult, series *calendar.Series, runs []*calendar.Run) reportPage {
	doc := report.Document{Title: title, Run: result.Run, Aggregate: result.Aggregate}
	page := reportPage{
		Title:     title,
		Report:    template.HTML(report.HTML(doc)),
		Series:    series,
		Runs:      runs,
		Frequency: result.Run.Frequency,
	}

	daily := result.Daily
	if !daily.Available {
		return page
	}
	n := daily.Len()
	if n > a.config.MaxDailyRows {
		n = a.config.MaxDailyRows
		page.Truncated = true
	}
	page.Daily = make([]dailyRow, n)
	for i := 0; i < n; i++ {
		row := dailyRow{Day: daily.Date(i), Value: daily.Values[i], Stdev: math.NaN()}
		if daily.HasStdev() {
			row.Stdev = daily.Stdevs[i]
		}
		page.Daily[i] = row
	}
	return page
}

func (a *App) frequency(s string) (calendar.Frequency, error) {
	if s == "" {
		return a.config.DefaultFrequency, nil
	}
	return calendar.ParseFrequency(s)
}

func (a *App) renderError(w http.ResponseWriter, status int, message string) {
	a.renderTemplate(w, status, "error.html", errorPage{Status: status, Message: message})
}
