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
	log.Println("starting bikepath GPS producer")

	if err := config.InitGlobal(config.DefaultPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunGPSProducer(ctx, config.Get()); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
