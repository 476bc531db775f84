// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text


// ./cmd/calibration/main.go
//
// Resting-offset calibration for the frame IMU.
// Stand the bike upright and level, start the program and follow the
// prompts. The mean gravity-compensated acceleration and the mean
// pitch/roll measured while still become the offsets subtracted from every
// sample the logger records.
//
// Output:
//
//	Writes CALIBRATION_FILE (YAML) with the offsets, sample count and date.
//
// Run:
//
//	go run ./cmd/calibration -duration 10s
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/bikepath_logger/internal/app"
	"github.com/relabs-tech/bikepath_logger/internal/config"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "config file")
	duration := flag.Duration("duration", 10*time.Second, "measurement time, 0 to stop on Enter")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	logger, err := app.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunCalibration(ctx, cfg, logger, os.Stdin, os.Stdout, *duration); err != nil {
		log.Fatalf("calibration failed: %v", err)
	}
}
