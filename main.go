package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"gocal/internal/api"
	"gocal/internal/config"
	"gocal/internal/container"
	"gocal/ui"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load environment variables from .env file
	if loaded, err := config.LoadEnvFile(".env"); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	} else if !loaded {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	gin.SetMode(appConfig.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appContainer, err := container.New(appConfig)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	defer appContainer.Shutdown(context.Background())

	if err := appContainer.Init(ctx); err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	handler := api.NewCalendarizationHandler(appContainer.Service, appConfig.Calendarize.DefaultFrequency, appContainer.Logger)
	apiServer := &http.Server{
		Addr:              ":" + appConfig.Server.Port,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	viewer, err := ui.NewApp(appContainer.Service, ui.Config{
		Port:             appConfig.Server.UIPort,
		DefaultFrequency: appConfig.Calendarize.DefaultFrequency,
	}, appContainer.Logger)
	if err != nil {
		log.Fatalf("Failed to create report viewer: %v", err)
	}
	uiServer := &http.Server{
		Addr:              ":" + appConfig.Server.UIPort,
		Handler:           viewer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range []*http.Server{apiServer, uiServer} {
		srv := srv
		g.Go(func() error {
			log.Printf("Listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		apiErr := apiServer.Shutdown(shutdownCtx)
		uiErr := uiServer.Shutdown(shutdownCtx)
		if apiErr != nil {
			return apiErr
		}
		return uiErr
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
	log.Println("Shut down cleanly")
}
