// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/bikepath_logger/internal/camera"
	"github.com/relabs-tech/bikepath_logger/internal/capture"
	"github.com/relabs-tech/bikepath_logger/internal/config"
	"github.com/relabs-tech/bikepath_logger/internal/gps"
	"github.com/relabs-tech/bikepath_logger/internal/motion"
	"github.com/relabs-tech/bikepath_logger/internal/sink"
)

const statusInterval = 5 * time.Second

// RunLogger runs the full capture pipeline until ctx is canceled: IMU into
// the motion processor and buffer, GPS into the tracker, and the camera
// driven by the orchestrator into the sinks.
func RunLogger(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDLogger, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	clock := capture.NewSystemClock()
	buf := motion.NewBuffer()
	proc := motion.NewProcessor(buf, motion.DefaultQueueSize, logger)
	loadOffsets(proc, cfg.CalibrationFile, logger)

	feedIMU, err := imuFeed(cfg, client, clock, proc.Submit, logger)
	if err != nil {
		return err
	}
	tracker := gps.NewTracker(cfg.GPSMaxAge())
	feedGPS, err := gpsFeed(cfg, client, tracker, logger)
	if err != nil {
		return err
	}

	dir, err := sink.NewDir(cfg.OutputDir, cfg.ImagesPerFolder, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := dir.Close(); err != nil {
			logger.Error("sink: close output", "error", err)
		}
	}()

	live := sink.NewMQTT(client, cfg.TopicRecords, cfg.TopicStatus)
	remote := sink.Multi{live}
	if cfg.ClickHouseAddr != "" {
		ch, err := sink.NewClickHouse(ctx, sink.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
		}, logger)
		if err != nil {
			return err
		}
		defer ch.Close()
		remote = append(remote, ch)
	}
	// The CSV row is written in step with its image so both land in the
	// same folder; the network sinks run behind a queue.
	async := sink.NewAsync(remote, cfg.RecordQueueSize, logger)

	opts := capture.DefaultOptions()
	opts.MinSpeedKmh = cfg.MinSpeedKmh
	opts.WorstCaseWindow = cfg.WorstCaseWindow()
	opts.DynamicWindow = cfg.WindowMode == "dynamic"
	opts.PreCaptureLead = cfg.PreCaptureLead()
	opts.LockTimeout = cfg.CameraLockTimeout()

	// The CSV row decides the outcome; the remote path is best effort.
	records := sink.NewTee(dir, async, logger)

	orch := capture.New(capture.Deps{
		Hardware: camera.NewSimulator(clock, camera.DefaultOptions(), logger),
		Buffer:   buf,
		Clock:    clock,
		Location: tracker,
		Sink:     records,
		Images:   dir,
		Logger:   logger,
	}, opts)

	states := make(chan capture.State, 1)
	orch.OnStateChange(func(s capture.State) {
		// keep only the newest state
		select {
		case <-states:
		default:
		}
		states <- s
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return proc.Run(ctx) })
	g.Go(func() error { return feedIMU(ctx) })
	g.Go(func() error { return feedGPS(ctx) })
	g.Go(func() error { return async.Run(ctx) })
	g.Go(func() error { return orch.Run(ctx) })
	g.Go(func() error { return publishStatus(ctx, orch, live, states, logger) })

	orch.Start()
	logger.Info("logger: capture started", "session", orch.SessionID(), "output", cfg.OutputDir,
		"imu", cfg.IMUSource, "gps", cfg.GPSSource, "window", cfg.WindowMode)

	if err := g.Wait(); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	st := orch.Stats()
	logger.Info("logger: stopped", "persisted", st.Persisted, "skipped", st.Skipped,
		"failed", st.Failed, "not_forwarded", records.MirrorFailed(), "dropped_readings", proc.Dropped())
	return nil
}

// statusPublisher is the part of sink.MQTT used for live status.
type statusPublisher interface {
	PublishStatus(sink.Status) error
}

// publishStatus publishes the orchestrator status on every state change
// and every statusInterval.
func publishStatus(ctx context.Context, orch *capture.Orchestrator, pub statusPublisher,
	states <-chan capture.State, logger *slog.Logger) error {

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		state := orch.State()
		select {
		case <-ctx.Done():
			return nil
		case state = <-states:
		case <-ticker.C:
		}

		st := orch.Stats()
		err := pub.PublishStatus(sink.Status{
			SessionID: orch.SessionID(),
			State:     state.String(),
			Persisted: st.Persisted,
			Skipped:   st.Skipped,
			Time:      time.Now().UnixMilli(),
		})
		if err != nil {
			logger.Warn("logger: publish status", "error", err)
		}
	}
}
