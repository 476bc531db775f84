// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/bikepath_logger/internal/capture"
	"github.com/relabs-tech/bikepath_logger/internal/config"
	"github.com/relabs-tech/bikepath_logger/internal/motion"
)

// RunCalibration measures the acceleration and pitch/roll offsets with the
// bike standing still and writes them to CALIBRATION_FILE. With a zero
// duration the measurement runs until Enter is pressed again.
func RunCalibration(ctx context.Context, cfg *config.Config, logger *slog.Logger,
	in io.Reader, out io.Writer, duration time.Duration) error {

	var client mqtt.Client
	if cfg.IMUSource == "mqtt" {
		c, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDLogger+"-calibration", logger)
		if err != nil {
			return err
		}
		defer c.Disconnect(250)
		client = c
	}

	proc := motion.NewProcessor(motion.NewBuffer(), motion.DefaultQueueSize, logger)
	feedIMU, err := imuFeed(cfg, client, capture.NewSystemClock(), proc.Submit, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return proc.Run(gctx) })
	g.Go(func() error { return feedIMU(gctx) })

	offsets, n, calErr := calibrate(gctx, proc, in, out, duration)
	cancel()
	if err := g.Wait(); err != nil {
		return err
	}
	if calErr != nil {
		return calErr
	}

	if err := motion.SaveOffsets(cfg.CalibrationFile, offsets, n); err != nil {
		return err
	}
	fmt.Fprintf(out, "Saved %s\n", cfg.CalibrationFile)
	return nil
}

// calibrate runs one calibration on proc, prompting on out.
func calibrate(ctx context.Context, proc *motion.Processor, in io.Reader, out io.Writer,
	duration time.Duration) (motion.Offsets, int, error) {

	reader := bufio.NewReader(in)
	fmt.Fprintln(out, "Stand the bike upright, level and still, then press Enter to start.")
	if err := waitEnter(ctx, reader); err != nil {
		return motion.Offsets{}, 0, err
	}

	proc.StartCalibration()
	if duration > 0 {
		fmt.Fprintf(out, "Measuring for %s...\n", duration)
		timer := time.NewTimer(duration)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			proc.StopCalibration()
			return motion.Offsets{}, 0, ctx.Err()
		case <-timer.C:
		}
	} else {
		fmt.Fprintln(out, "Measuring, press Enter to stop.")
		if err := waitEnter(ctx, reader); err != nil {
			proc.StopCalibration()
			return motion.Offsets{}, 0, err
		}
	}

	o, n := proc.StopCalibration()
	if n == 0 {
		return o, 0, errors.New("calibration: no IMU samples received")
	}
	fmt.Fprintf(out, "Offsets from %d samples: accel=(%.4f, %.4f, %.4f) m/s² pitch=%.4f° roll=%.4f°\n",
		n, o.Acceleration.X, o.Acceleration.Y, o.Acceleration.Z,
		motion.Degrees(o.Pitch), motion.Degrees(o.Roll))
	return o, n, nil
}

func waitEnter(ctx context.Context, r *bufio.Reader) error {
	done := make(chan error, 1)
	go func() {
		_, err := r.ReadString('\n')
		done <- err
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		return nil
	}
}
