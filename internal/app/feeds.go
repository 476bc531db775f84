// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/bikepath_logger/internal/config"
	"github.com/relabs-tech/bikepath_logger/internal/gps"
	"github.com/relabs-tech/bikepath_logger/internal/motion"
	"github.com/relabs-tech/bikepath_logger/internal/sensors"
)

// feed is a blocking input loop run until ctx is canceled.
type feed func(ctx context.Context) error

func waitDone(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// imuSource opens the polled IMU selected by IMU_SOURCE.
func imuSource(cfg *config.Config, logger *slog.Logger) (sensors.IMURawReader, error) {
	if cfg.IMUSource == "mock" {
		logger.Info("sensors: using mock IMU")
		return sensors.NewMockSource(), nil
	}
	return sensors.NewIMUSource(sensors.IMUConfig{
		Name:       "frame",
		SPIDevice:  cfg.IMUSPIDevice,
		CSPin:      cfg.IMUCSPin,
		AccelRange: cfg.IMUAccelRange,
		SelfTest:   cfg.IMUSelfTest,
		Calibrate:  cfg.IMUCalibrate,
	}, logger)
}

// imuFeed connects the configured IMU to submit.
func imuFeed(cfg *config.Config, client mqtt.Client, clock sensors.Clock,
	submit func(motion.Reading), logger *slog.Logger) (feed, error) {

	if cfg.IMUSource == "mqtt" {
		if err := sensors.SubscribeIMU(client, cfg.TopicIMU, clock, submit, logger); err != nil {
			return nil, err
		}
		logger.Info("sensors: subscribed to IMU stream", "topic", cfg.TopicIMU)
		return waitDone, nil
	}

	src, err := imuSource(cfg, logger)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		return sensors.Poll(ctx, src, cfg.IMUInterval(), clock, submit, logger)
	}, nil
}

// gpsFeed connects the configured GPS to tracker.
func gpsFeed(cfg *config.Config, client mqtt.Client, tracker *gps.Tracker, logger *slog.Logger) (feed, error) {
	switch cfg.GPSSource {
	case "serial":
		sc := gps.SerialConfig{Port: cfg.GPSSerialPort, BaudRate: uint(cfg.GPSBaudRate)}
		return func(ctx context.Context) error {
			logger.Info("gps: reading serial port", "port", sc.Port, "baud", sc.BaudRate)
			return gps.ReadSerial(ctx, sc, func(f gps.Fix) {
				if !tracker.Update(f) {
					logger.Debug("gps: void fix ignored", "validity", f.Validity)
				}
			})
		}, nil
	case "mqtt":
		if err := gps.SubscribeFixes(client, cfg.TopicGPS, tracker, logger); err != nil {
			return nil, err
		}
		logger.Info("gps: subscribed to fixes", "topic", cfg.TopicGPS)
		return waitDone, nil
	default:
		logger.Warn("gps: no source configured, captures will be skipped")
		return waitDone, nil
	}
}

// loadOffsets applies the saved calibration, if there is one.
func loadOffsets(proc *motion.Processor, path string, logger *slog.Logger) {
	if path == "" {
		return
	}
	o, err := motion.LoadOffsets(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Info("motion: no calibration file, using zero offsets", "path", path)
	case err != nil:
		logger.Warn("motion: ignoring calibration file", "error", err)
	default:
		proc.SetOffsets(o)
		logger.Info("motion: calibration loaded", "path", path, "pitch", o.Pitch, "roll", o.Roll)
	}
}
