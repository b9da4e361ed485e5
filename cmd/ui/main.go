package main

import (
	"context"
	"log"

	"gocal/internal/config"
	"gocal/internal/container"
	"gocal/ui"
)

func main() {
	if _, err := config.LoadEnvFile(".env"); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	c, err := container.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create container: %v", err)
	}
	defer c.Shutdown(context.Background())
	if err := c.Init(context.Background()); err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	app, err := ui.NewApp(c.Service, ui.Config{
		Port:             cfg.Server.UIPort,
		DefaultFrequency: cfg.Calendarize.DefaultFrequency,
	}, c.Logger)
	if err != nil {
		log.Fatal("Failed to create UI app:", err)
	}
	log.Fatal(app.Start())
}
