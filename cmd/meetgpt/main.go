package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"meetgpt/internal/app"
	"meetgpt/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("init: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	if err := application.Run(ctx); err != nil {
		log.Fatalf("run: %v", err)
	}
}
