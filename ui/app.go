package ui

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gocal/app"
	"gocal/domain/calendar"
	"gocal/internal"
)

//go:embed templates/* static/*
var embeddedFiles embed.FS

// App serves the report viewer
type App struct {
	router    *chi.Mux
	service   *app.CalendarizationService
	templates *template.Template
	config    Config
	logger    *internal.Logger
}

// Config holds UI application configuration
type Config struct {
	Port             string
	DefaultFrequency calendar.Frequency
	// MaxDailyRows caps the daily table; longer series are summarized only
	MaxDailyRows int
}

// NewApp creates the UI application around a calendarization service
func NewApp(service *app.CalendarizationService, config Config, logger *internal.Logger) (*App, error) {
	if config.Port == "" {
		config.Port = "8081"
	}
	if config.DefaultFrequency == "" {
		config.DefaultFrequency = calendar.FrequencyMonthly
	}
	if config.MaxDailyRows <= 0 {
		config.MaxDailyRows = 400
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}

	funcMap := template.FuncMap{
		"num": func(v float64) string {
			if math.IsNaN(v) {
				return "-"
			}
			return fmt.Sprintf("%.4f", v)
		},
		"day": func(t time.Time) string { return t.Format(calendar.DateLayout) },
	}
	templates, err := template.New("").Funcs(funcMap).ParseFS(embeddedFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	a := &App{
		router:    chi.NewRouter(),
		service:   service,
		templates: templates,
		config:    config,
		logger:    logger.WithComponent("ui"),
	}
	a.setupMiddleware()
	a.setupRoutes()
	return a, nil
}

func (a *App) setupMiddleware() {
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))

	a.router.Handle("/static/*", http.FileServer(http.FS(embeddedFiles)))
}

func (a *App) setupRoutes() {
	a.router.Get("/", a.handleIndex)
	a.router.Post("/calendarize", a.handleCalendarize)
	a.router.Get("/series/{id}", a.handleSeries)
	a.router.Get("/runs/{id}", a.handleRun)
}

// Handler exposes the router for embedding and tests
func (a *App) Handler() http.Handler {
	return a.router
}

// Start starts the HTTP server
func (a *App) Start() error {
	addr := ":" + a.config.Port
	a.logger.Info("starting report viewer on %s", addr)
	return http.ListenAndServe(addr, a.router)
}

// renderTemplate renders into a buffer first so a failing template never
// leaves a half-written page
func (a *App) renderTemplate(w http.ResponseWriter, status int, name string, data interface{}) {
	var buf bytes.Buffer
	if err := a.templates.ExecuteTemplate(&buf, name, data); err != nil {
		a.logger.Error("template %s: %v", name, err)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		a.logger.Warn("writing %s: %v", name, err)
	}
}
