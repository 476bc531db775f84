// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/bikepath_logger/internal/app"
	"github.com/relabs-tech/bikepath_logger/internal/config"
)

func main() {
	log.Println("starting bikepath logger")

	if err := config.InitGlobal(config.DefaultPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	logger, err := app.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunLogger(ctx, cfg, logger); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
