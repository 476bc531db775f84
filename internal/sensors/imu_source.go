// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/bikepath_logger/internal/imu"
)

// IMURawReader defines the interface for reading raw IMU data.
type IMURawReader interface {
	ReadRaw() (imu.IMURaw, error)
}

// IMUConfig selects and configures an MPU9250 on SPI.
type IMUConfig struct {
	Name       string // for logging, e.g. "frame"
	SPIDevice  string // e.g. /dev/spidev6.0
	CSPin      string // e.g. "18"
	AccelRange byte   // 0..3 for ±2/4/8/16 g
	SelfTest   bool
	Calibrate  bool
}

type imuSource struct {
	name       string
	imu        *mpu9250.MPU9250
	accelRange byte
}

// NewIMUSource initializes an MPU9250 over SPI.
func NewIMUSource(cfg IMUConfig, logger *slog.Logger) (IMURawReader, error) {
	name := cfg.Name
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%s IMU: periph host init: %w", name, err)
	}

	cs := gpioreg.ByName(cfg.CSPin)
	if cs == nil {
		return nil, fmt.Errorf("%s IMU: CS pin %q not found", name, cfg.CSPin)
	}

	tr, err := mpu9250.NewSpiTransport(cfg.SPIDevice, cs)
	if err != nil {
		return nil, fmt.Errorf("%s IMU: SPI transport (%s): %w", name, cfg.SPIDevice, err)
	}

	dev, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("%s IMU: device creation: %w", name, err)
	}

	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("%s IMU: initialization: %w", name, err)
	}

	if cfg.SelfTest {
		res, err := dev.SelfTest()
		if err != nil {
			logger.Warn("IMU self-test failed", "imu", name, "error", err)
		} else {
			logger.Info("IMU self-test passed", "imu", name,
				"accel_dev_x", res.AccelDeviation.X, "accel_dev_y", res.AccelDeviation.Y, "accel_dev_z", res.AccelDeviation.Z)
		}
	}

	if cfg.Calibrate {
		if err := dev.Calibrate(); err != nil {
			logger.Warn("IMU calibration failed", "imu", name, "error", err)
		} else {
			logger.Info("IMU calibration complete", "imu", name)
		}
	}

	// Calibrate resets the ranges, so apply ours afterwards.
	if err := dev.SetAccelRange(cfg.AccelRange); err != nil {
		return nil, fmt.Errorf("%s IMU: set accel range: %w", name, err)
	}
	logger.Info("IMU ready", "imu", name, "spi", cfg.SPIDevice,
		"accel_range_g", []int{2, 4, 8, 16}[cfg.AccelRange&3])

	return &imuSource{name: name, imu: dev, accelRange: cfg.AccelRange}, nil
}

// ReadRaw reads accelerometer and gyroscope data from this IMU. The
// upstream driver does not expose the AK8963, so MagValid stays false.
func (s *imuSource) ReadRaw() (imu.IMURaw, error) {
	ax, err := s.imu.GetAccelerationX()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("%s IMU accel X: %w", s.name, err)
	}
	ay, err := s.imu.GetAccelerationY()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("%s IMU accel Y: %w", s.name, err)
	}
	az, err := s.imu.GetAccelerationZ()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("%s IMU accel Z: %w", s.name, err)
	}

	gx, err := s.imu.GetRotationX()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("%s IMU gyro X: %w", s.name, err)
	}
	gy, err := s.imu.GetRotationY()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("%s IMU gyro Y: %w", s.name, err)
	}
	gz, err := s.imu.GetRotationZ()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("%s IMU gyro Z: %w", s.name, err)
	}

	return imu.IMURaw{
		Source:     s.name,
		Ax:         ax,
		Ay:         ay,
		Az:         az,
		Gx:         gx,
		Gy:         gy,
		Gz:         gz,
		AccelRange: s.accelRange,
	}, nil
}
