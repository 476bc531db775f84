// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package motion

// Vector3 is a three-axis float32 value (m/s² for acceleration, µT for the
// magnetic field).
type Vector3 struct {
	X float32 `json:"x" yaml:"x"`
	Y float32 `json:"y" yaml:"y"`
	Z float32 `json:"z" yaml:"z"`
}

// Orientation holds device angles in radians.
type Orientation struct {
	Azimuth float32 `json:"azimuth"`
	Pitch   float32 `json:"pitch"`
	Roll    float32 `json:"roll"`
}

// Sample is one fused sensor observation. Samples are immutable once
// created; the timestamp comes from the monotonic clock shared with the
// camera.
type Sample struct {
	TimestampNanos int64       `json:"ts_ns"`
	Acceleration   Vector3     `json:"accel"` // gravity compensated
	Orientation    Orientation `json:"orientation"`
}

// ReadingKind tells the processor which sensor produced a Reading.
type ReadingKind int

const (
	Accelerometer ReadingKind = iota
	Magnetometer
)

func (k ReadingKind) String() string {
	switch k {
	case Accelerometer:
		return "accelerometer"
	case Magnetometer:
		return "magnetometer"
	default:
		return "unknown"
	}
}

// Reading is a raw, uncalibrated value delivered by a sensor source.
type Reading struct {
	Kind           ReadingKind
	TimestampNanos int64
	Values         Vector3
}
