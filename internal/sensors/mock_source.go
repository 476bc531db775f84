// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"
	"time"

	"github.com/relabs-tech/bikepath_logger/internal/imu"
)

type mockSource struct {
	start time.Time
	now   func() time.Time
}

// NewMockSource creates a mock IMU that generates a slowly pitching and
// turning ride with road vibration on the vertical axis.
func NewMockSource() IMURawReader {
	return &mockSource{start: time.Now(), now: time.Now}
}

func (m *mockSource) ReadRaw() (imu.IMURaw, error) {
	elapsed := m.now().Sub(m.start).Seconds()

	pitch := 0.1 * math.Sin(elapsed*0.7)
	roll := 0.05 * math.Sin(elapsed)
	bump := 0.3 * math.Sin(elapsed*2*math.Pi*12)
	heading := math.Mod(elapsed*0.2, 2*math.Pi)

	// ±2 g range: 16384 counts per g.
	const lsb = 16384.0
	ax := -math.Sin(pitch)
	ay := math.Cos(pitch) * math.Sin(roll)
	az := math.Cos(pitch)*math.Cos(roll) + bump

	// Horizontal field of 22 µT towards north plus 40 µT down.
	mx := -22 * math.Sin(heading)
	my := 22 * math.Cos(heading)
	mz := -40.0

	return imu.IMURaw{
		Source:   "mock",
		Ax:       int16(ax * lsb),
		Ay:       int16(ay * lsb),
		Az:       int16(az * lsb),
		Mx:       int16(mx * 10),
		My:       int16(my * 10),
		Mz:       int16(mz * 10),
		MagValid: true,
	}, nil
}
