package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"gocal/adapters/kalman"
	"gocal/app"
	"gocal/domain/calendar"
	"gocal/internal/testkit"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(persist bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := app.ServiceConfig{MaxConcurrency: 2}
	var svc *app.CalendarizationService
	if persist {
		kit := testkit.NewTestKit()
		svc = app.NewCalendarizationService(kalman.NewSmoother(nil), kit.SeriesRepository(), kit.RunRepository(), cfg, nil)
	} else {
		svc = app.NewCalendarizationService(kalman.NewSmoother(nil), nil, nil, cfg, nil)
	}
	return NewRouter(NewCalendarizationHandler(svc, calendar.FrequencyMonthly, nil))
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

var twoMonths = []ObservationDTO{
	{Start: "2021-01-01", End: "2021-02-01", Value: 310},
	{Start: "2021-02-01", End: "2021-03-01", Value: 280},
}

func TestCalendarizeEndpoint(t *testing.T) {
	r := newTestRouter(false)

	w := do(t, r, http.MethodPost, "/api/calendarize", CalendarizeRequestDTO{Observations: twoMonths, Frequency: "monthly"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result app.CalendarizeResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.NotNil(t, result.Aggregate)
	require.Len(t, result.Aggregate.Points, 2)
	assert.InDelta(t, 310.0, result.Aggregate.Points[0].Value, 1e-6)
	assert.Len(t, result.Daily.Values, 59)
	assert.Nil(t, result.Daily.Stdevs)
	assert.Contains(t, w.Body.String(), `"stdev":null`)
}

func TestCalendarizeEndpoint_Errors(t *testing.T) {
	r := newTestRouter(false)

	w := do(t, r, http.MethodPost, "/api/calendarize", CalendarizeRequestDTO{Observations: []ObservationDTO{
		{Start: "2021-01-01", End: "2021-01-20", Value: 1},
		{Start: "2021-01-10", End: "2021-02-01", Value: 1},
	}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")

	w = do(t, r, http.MethodPost, "/api/calendarize", CalendarizeRequestDTO{Observations: []ObservationDTO{{Start: "January", End: "2021-02-01"}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/calendarize", CalendarizeRequestDTO{Observations: twoMonths, Span: &SpanDTO{Start: "2021-03-01", End: "2021-01-01"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/calendarize", bytes.NewBufferString("{"))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCalendarizeBatchEndpoint(t *testing.T) {
	r := newTestRouter(false)

	w := do(t, r, http.MethodPost, "/api/calendarize/batch", []CalendarizeRequestDTO{
		{Observations: twoMonths},
		{Observations: twoMonths, Frequency: "weekly", WithStdev: true},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Results []app.CalendarizeResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Results, 2)
	assert.Len(t, body.Results[1].Aggregate.Points, 9)
}

func TestSeriesEndpoints(t *testing.T) {
	r := newTestRouter(true)

	w := do(t, r, http.MethodPost, "/api/series", CreateSeriesDTO{Name: "sales", Observations: twoMonths})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var series calendar.Series
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &series))
	require.NotEmpty(t, series.ID)

	w = do(t, r, http.MethodGet, "/api/series/"+series.ID.String()+"/daily?stdev=true&start=2021-01-01&end=2021-03-10", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var daily struct {
		Run   calendar.Run         `json:"run"`
		Daily calendar.DailySeries `json:"daily"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &daily))
	assert.Len(t, daily.Daily.Values, 68)
	assert.Len(t, daily.Daily.Stdevs, 68)

	w = do(t, r, http.MethodGet, "/api/series/"+series.ID.String()+"/aggregate", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"frequency":"monthly"`)

	w = do(t, r, http.MethodGet, "/api/series/"+series.ID.String()+"/aggregate/quarterly", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/api/series/"+series.ID.String()+"/runs?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var runs struct {
		Runs []calendar.Run `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &runs))
	require.Len(t, runs.Runs, 3)

	w = do(t, r, http.MethodGet, "/api/runs/"+runs.Runs[0].ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/api/runs/"+runs.Runs[0].ID.String()+"/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "# Calendarization run")

	w = do(t, r, http.MethodGet, "/api/series", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"sales"`)

	w = do(t, r, http.MethodGet, "/api/series/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, "/api/series/"+series.ID.String()+"/aggregate/fortnightly", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSeriesEndpoints_WithoutPersistence(t *testing.T) {
	r := newTestRouter(false)

	w := do(t, r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"persistence":false`)

	w = do(t, r, http.MethodPost, "/api/series", CreateSeriesDTO{Name: "sales", Observations: twoMonths})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
