// Package api exposes calendarization over a JSON HTTP interface.
package api

import (
	"net/http"
	"strconv"

	"gocal/app"
	"gocal/domain/calendar"
	"gocal/domain/core"
	"gocal/internal"
	"gocal/internal/errors"
	"gocal/internal/report"

	"github.com/gin-gonic/gin"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	maxBatchSize     = 100
)

// CalendarizationHandler serves calendarization requests
type CalendarizationHandler struct {
	service     *app.CalendarizationService
	defaultFreq calendar.Frequency
	logger      *internal.Logger
}

// NewCalendarizationHandler creates a new calendarization handler.
// defaultFreq is used by the aggregate route when the path names none.
func NewCalendarizationHandler(service *app.CalendarizationService, defaultFreq calendar.Frequency, logger *internal.Logger) *CalendarizationHandler {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &CalendarizationHandler{
		service:     service,
		defaultFreq: defaultFreq,
		logger:      logger.WithComponent("API"),
	}
}

// NewRouter builds a gin engine with all routes registered
func NewRouter(h *CalendarizationHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", h.Health)
	h.RegisterRoutes(r.Group("/api"))
	return r
}

// RegisterRoutes mounts the handler on group
func (h *CalendarizationHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("/calendarize", h.Calendarize)
	group.POST("/calendarize/batch", h.CalendarizeBatch)

	group.POST("/series", h.CreateSeries)
	group.GET("/series", h.ListSeries)
	group.GET("/series/:id", h.GetSeries)
	group.GET("/series/:id/daily", h.SeriesDaily)
	group.GET("/series/:id/aggregate", h.SeriesAggregate)
	group.GET("/series/:id/aggregate/:freq", h.SeriesAggregate)
	group.GET("/series/:id/runs", h.ListRuns)

	group.GET("/runs/:id", h.GetRun)
	group.GET("/runs/:id/report", h.RunReport)
}

// Health reports liveness and whether persistence is configured
func (h *CalendarizationHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"persistence": h.service.PersistenceEnabled(),
	})
}

// Calendarize handles POST /api/calendarize
func (h *CalendarizationHandler) Calendarize(c *gin.Context) {
	var body CalendarizeRequestDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	req, err := body.toRequest()
	if err != nil {
		h.respondError(c, err)
		return
	}

	result, err := h.service.Calendarize(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CalendarizeBatch handles POST /api/calendarize/batch
func (h *CalendarizationHandler) CalendarizeBatch(c *gin.Context) {
	var body []CalendarizeRequestDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if len(body) > maxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Batch too large", "limit": maxBatchSize})
		return
	}

	reqs := make([]app.CalendarizeRequest, len(body))
	for i, b := range body {
		req, err := b.toRequest()
		if err != nil {
			h.respondError(c, errors.Wrapf(err, "batch item %d", i))
			return
		}
		reqs[i] = req
	}

	results, err := h.service.CalendarizeBatch(c.Request.Context(), reqs)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// CreateSeries handles POST /api/series
func (h *CalendarizationHandler) CreateSeries(c *gin.Context) {
	var body CreateSeriesDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	obs, err := toObservations(body.Observations)
	if err != nil {
		h.respondError(c, err)
		return
	}

	series, err := h.service.CreateSeries(c.Request.Context(), body.Name, obs, body.Weights)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, series)
}

// ListSeries handles GET /api/series
func (h *CalendarizationHandler) ListSeries(c *gin.Context) {
	limit, offset := pagination(c)
	series, err := h.service.ListSeries(c.Request.Context(), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"series": series, "limit": limit, "offset": offset})
}

// GetSeries handles GET /api/series/:id
func (h *CalendarizationHandler) GetSeries(c *gin.Context) {
	id, ok := h.seriesID(c)
	if !ok {
		return
	}
	series, err := h.service.GetSeries(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, series)
}

// SeriesDaily handles GET /api/series/:id/daily?stdev=true&start=&end=
func (h *CalendarizationHandler) SeriesDaily(c *gin.Context) {
	h.calendarizeSeries(c, "")
}

// SeriesAggregate handles GET /api/series/:id/aggregate/:freq
func (h *CalendarizationHandler) SeriesAggregate(c *gin.Context) {
	freq := c.Param("freq")
	if freq == "" {
		freq = string(h.defaultFreq)
	}
	h.calendarizeSeries(c, calendar.Frequency(freq))
}

func (h *CalendarizationHandler) calendarizeSeries(c *gin.Context, freq calendar.Frequency) {
	id, ok := h.seriesID(c)
	if !ok {
		return
	}
	span, err := parseSpan(c.Query("start"), c.Query("end"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	withStdev, _ := strconv.ParseBool(c.DefaultQuery("stdev", "false"))

	result, err := h.service.CalendarizeSeries(c.Request.Context(), id, freq, withStdev, span)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if result.Aggregate != nil {
		c.JSON(http.StatusOK, gin.H{"run": result.Run, "aggregate": result.Aggregate})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": result.Run, "daily": result.Daily})
}

// ListRuns handles GET /api/series/:id/runs
func (h *CalendarizationHandler) ListRuns(c *gin.Context) {
	id, ok := h.seriesID(c)
	if !ok {
		return
	}
	limit, _ := pagination(c)
	runs, err := h.service.ListRuns(c.Request.Context(), id, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetRun handles GET /api/runs/:id
func (h *CalendarizationHandler) GetRun(c *gin.Context) {
	run, ok := h.loadRun(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, run)
}

// RunReport handles GET /api/runs/:id/report as markdown
func (h *CalendarizationHandler) RunReport(c *gin.Context) {
	run, ok := h.loadRun(c)
	if !ok {
		return
	}
	md := report.Markdown(report.Document{Title: "Calendarization run", Run: *run})
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(md))
}

func (h *CalendarizationHandler) loadRun(c *gin.Context) (*calendar.Run, bool) {
	id, err := core.ParseRunID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid run ID"})
		return nil, false
	}
	run, err := h.service.GetRun(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	return run, true
}

func (h *CalendarizationHandler) seriesID(c *gin.Context) (core.SeriesID, bool) {
	id, err := core.ParseSeriesID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid series ID"})
		return "", false
	}
	return id, true
}

func (h *CalendarizationHandler) respondError(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": errors.GetCode(err)})
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit < 1 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
