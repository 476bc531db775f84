// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import "github.com/relabs-tech/bikepath_logger/internal/motion"

// standardGravity converts g to m/s².
const standardGravity = 9.80665

// IMURaw represents a single raw IMU+mag sample.
type IMURaw struct {
	Source string `json:"source"` // sensor name, e.g. "frame"

	Ax int16 `json:"ax"` // accel, counts
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`

	Gx int16 `json:"gx"` // gyro, counts
	Gy int16 `json:"gy"`
	Gz int16 `json:"gz"`

	Mx int16 `json:"mx"` // magnetometer, µT * 10
	My int16 `json:"my"`
	Mz int16 `json:"mz"`

	MagValid   bool `json:"mag_valid"`
	AccelRange byte `json:"accel_range"` // 0..3 for ±2/4/8/16 g
}

// AccelLSBPerG returns the accelerometer sensitivity for a range setting.
func AccelLSBPerG(rangeSel byte) float32 {
	return 16384 / float32(int(1)<<(rangeSel&3))
}

// Acceleration returns the accelerometer reading in m/s².
func (r IMURaw) Acceleration() motion.Vector3 {
	k := standardGravity / AccelLSBPerG(r.AccelRange)
	return motion.Vector3{
		X: float32(r.Ax) * k,
		Y: float32(r.Ay) * k,
		Z: float32(r.Az) * k,
	}
}

// Magnetic returns the magnetic field in µT, if the sample carries one.
func (r IMURaw) Magnetic() (motion.Vector3, bool) {
	if !r.MagValid {
		return motion.Vector3{}, false
	}
	return motion.Vector3{
		X: float32(r.Mx) / 10,
		Y: float32(r.My) / 10,
		Z: float32(r.Mz) / 10,
	}, true
}

// Readings splits r into the readings fed to the motion processor, all
// stamped with ts.
func (r IMURaw) Readings(ts int64) []motion.Reading {
	out := []motion.Reading{}
	if m, ok := r.Magnetic(); ok {
		out = append(out, motion.Reading{Kind: motion.Magnetometer, TimestampNanos: ts, Values: m})
	}
	return append(out, motion.Reading{Kind: motion.Accelerometer, TimestampNanos: ts, Values: r.Acceleration()})
}
