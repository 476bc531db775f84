// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package motion

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Offsets are per-channel resting biases subtracted from every sample.
// Azimuth is an absolute heading and is never offset.
type Offsets struct {
	Acceleration Vector3 `yaml:"acceleration"`
	Pitch        float32 `yaml:"pitch"`
	Roll         float32 `yaml:"roll"`
}

// Apply returns s with the offsets removed.
func (o Offsets) Apply(s Sample) Sample {
	s.Acceleration.X -= o.Acceleration.X
	s.Acceleration.Y -= o.Acceleration.Y
	s.Acceleration.Z -= o.Acceleration.Z
	s.Orientation.Pitch -= o.Pitch
	s.Orientation.Roll -= o.Roll
	return s
}

// calibrationFile is the on-disk form of Offsets.
type calibrationFile struct {
	SchemaVersion int       `yaml:"schema_version"`
	CalibratedAt  time.Time `yaml:"calibrated_at"`
	Samples       int       `yaml:"samples"`
	Offsets       Offsets   `yaml:"offsets"`
}

// SaveOffsets writes o to path as YAML.
func SaveOffsets(path string, o Offsets, samples int) error {
	data, err := yaml.Marshal(calibrationFile{
		SchemaVersion: 1,
		CalibratedAt:  time.Now().UTC(),
		Samples:       samples,
		Offsets:       o,
	})
	if err != nil {
		return fmt.Errorf("marshal calibration: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write calibration file: %w", err)
	}
	return nil
}

// LoadOffsets reads offsets previously written by SaveOffsets.
func LoadOffsets(path string) (Offsets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Offsets{}, fmt.Errorf("read calibration file: %w", err)
	}
	var f calibrationFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Offsets{}, fmt.Errorf("parse calibration file %s: %w", path, err)
	}
	if f.SchemaVersion != 1 {
		return Offsets{}, fmt.Errorf("calibration file %s: unsupported schema version %d", path, f.SchemaVersion)
	}
	return f.Offsets, nil
}

// calibrator accumulates raw (un-offset) channel values while a calibration
// is running.
type calibrator struct {
	ax, ay, az  []float32
	pitch, roll []float32
}

func (c *calibrator) add(s Sample) {
	c.ax = append(c.ax, s.Acceleration.X)
	c.ay = append(c.ay, s.Acceleration.Y)
	c.az = append(c.az, s.Acceleration.Z)
	c.pitch = append(c.pitch, s.Orientation.Pitch)
	c.roll = append(c.roll, s.Orientation.Roll)
}

func (c *calibrator) count() int { return len(c.ax) }

func (c *calibrator) offsets() Offsets {
	return Offsets{
		Acceleration: Vector3{X: mean(c.ax), Y: mean(c.ay), Z: mean(c.az)},
		Pitch:        mean(c.pitch),
		Roll:         mean(c.roll),
	}
}

func mean(values []float32) float32 {
	if len(values) == 0 {
		return 0
	}
	var sum float32
	for _, v := range values {
		sum += v
	}
	return sum / float32(len(values))
}
