package ui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"gocal/adapters/kalman"
	"gocal/app"
	"gocal/domain/calendar"
	"gocal/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, persist bool) (*App, *app.CalendarizationService) {
	t.Helper()
	cfg := app.ServiceConfig{MaxConcurrency: 2}
	var svc *app.CalendarizationService
	if persist {
		kit := testkit.NewTestKit()
		svc = app.NewCalendarizationService(kalman.NewSmoother(nil), kit.SeriesRepository(), kit.RunRepository(), cfg, nil)
	} else {
		svc = app.NewCalendarizationService(kalman.NewSmoother(nil), nil, nil, cfg, nil)
	}
	a, err := NewApp(svc, Config{MaxDailyRows: 40}, nil)
	require.NoError(t, err)
	return a, svc
}

func get(a *App, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func postForm(a *App, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, req)
	return w
}

const twoMonthsCSV = "start,end,value\n2021-01-01,2021-02-01,310\n2021-02-01,2021-03-01,280\n"

func TestIndex(t *testing.T) {
	a, _ := newTestApp(t, false)
	w := get(a, "/")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Calendarize observations")
	assert.Contains(t, body, `<option value="monthly" selected>`)
	assert.NotContains(t, body, "Stored series")
	assert.Contains(t, body, "</html>")
}

func TestStaticAssets(t *testing.T) {
	a, _ := newTestApp(t, false)
	w := get(a, "/static/style.css")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "table")
}

func TestCalendarizeForm(t *testing.T) {
	a, _ := newTestApp(t, false)
	w := postForm(a, "/calendarize", url.Values{
		"observations": {twoMonthsCSV},
		"frequency":    {"monthly"},
		"stdev":        {"on"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := w.Body.String()
	assert.Contains(t, body, "Monthly aggregates")
	assert.Contains(t, body, "310.0000")
	assert.Contains(t, body, "Daily values")
	assert.Contains(t, body, "Showing the first 40 days")
	assert.Contains(t, body, "2021-01-01")
}

func TestCalendarizeForm_InclusiveEnd(t *testing.T) {
	a, _ := newTestApp(t, false)
	w := postForm(a, "/calendarize", url.Values{
		"observations":  {"from,to,amount\n2021-01-01,2021-01-31,310\n2021-02-01,2021-02-28,280\n"},
		"inclusive_end": {"on"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := w.Body.String()
	assert.Contains(t, body, "280.0000")
	assert.Contains(t, body, "2021-03-01")
}

func TestCalendarizeForm_Errors(t *testing.T) {
	a, _ := newTestApp(t, false)

	w := postForm(a, "/calendarize", url.Values{"observations": {"start,end,value\nsoon,2021-02-01,1\n"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "row 2")

	w = postForm(a, "/calendarize", url.Values{"observations": {twoMonthsCSV}, "frequency": {"fortnightly"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postForm(a, "/calendarize", url.Values{
		"observations": {"start,end,value\n2021-01-01,2021-01-20,1\n2021-01-10,2021-02-01,1\n"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "class=\"error\"")
}

func TestSeriesAndRunPages(t *testing.T) {
	a, svc := newTestApp(t, true)
	ctx := context.Background()

	obs := []calendar.PeriodObservation{
		{Start: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC), Value: 310},
		{Start: time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC), Value: 280},
	}
	series, err := svc.CreateSeries(ctx, "store-12", obs, nil)
	require.NoError(t, err)

	w := get(a, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "store-12")

	w = get(a, "/series/"+series.ID.String()+"?freq=quarterly&stdev=true")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := w.Body.String()
	assert.Contains(t, body, "Quarterly aggregates")
	assert.Contains(t, body, "Recent runs")

	runs, err := svc.ListRuns(ctx, series.ID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, runs)

	w = get(a, "/runs/"+runs[0].ID.String())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Daily reconstruction")

	assert.Equal(t, http.StatusNotFound, get(a, "/series/missing").Code)
	assert.Equal(t, http.StatusNotFound, get(a, "/runs/missing").Code)
	assert.Equal(t, http.StatusBadRequest, get(a, "/series/"+series.ID.String()+"?freq=fortnightly").Code)
}

func TestSeriesPage_EscapesSeriesName(t *testing.T) {
	a, svc := newTestApp(t, true)
	obs := []calendar.PeriodObservation{
		{Start: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC), Value: 310},
	}
	series, err := svc.CreateSeries(context.Background(), `<img src=x onerror=alert(1)>`, obs, nil)
	require.NoError(t, err)

	w := get(a, "/series/"+series.ID.String())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := w.Body.String()
	assert.NotContains(t, body, "<img")
	assert.Contains(t, body, "&lt;img")
}
