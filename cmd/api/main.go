package main

import (
	"context"
	"log"

	"gocal/internal/api"
	"gocal/internal/config"
	"gocal/internal/container"

	"github.com/gin-gonic/gin"
)

// API-only server; main.go at the module root also serves the report viewer
func main() {
	if _, err := config.LoadEnvFile(".env"); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	gin.SetMode(cfg.Server.GinMode)

	c, err := container.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create container: %v", err)
	}
	defer c.Shutdown(context.Background())
	if err := c.Init(context.Background()); err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	router := api.NewRouter(api.NewCalendarizationHandler(c.Service, cfg.Calendarize.DefaultFrequency, c.Logger))
	log.Printf("Starting calendarization API on :%s", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatal("Server failed:", err)
	}
}
