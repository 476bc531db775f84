// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package features

import "github.com/relabs-tech/bikepath_logger/internal/motion"

// Fragment holds the motion statistics of one exposure window. Channel
// statistics are in m/s² and radians; deltas are in degrees.
type Fragment struct {
	SampleCount    int   `json:"sample_count"`
	FirstTimestamp int64 `json:"first_timestamp_ns"`
	LastTimestamp  int64 `json:"last_timestamp_ns"`

	AccelX ChannelStats `json:"accel_x"`
	AccelY ChannelStats `json:"accel_y"`
	AccelZ ChannelStats `json:"accel_z"`
	Pitch  ChannelStats `json:"pitch"`
	Roll   ChannelStats `json:"roll"`

	AzimuthDelta float32 `json:"azimuth_delta_deg"`
	PitchDelta   float32 `json:"pitch_delta_deg"`
	RollDelta    float32 `json:"roll_delta_deg"`

	// Raw window series, one entry per sample. OffsetsNanos are measured
	// from the window start.
	AccelZSeries []float32 `json:"accel_z_series"`
	PitchSeries  []float32 `json:"pitch_series"`
	OffsetsNanos []int64   `json:"offsets_ns"`
}

// Aggregate reduces samples to a Fragment, with offsets measured from the
// first sample. An empty slice gives the zero Fragment.
func Aggregate(samples []motion.Sample) Fragment {
	if len(samples) == 0 {
		return Fragment{}
	}
	return AggregateWindow(samples, samples[0].TimestampNanos)
}

// AggregateWindow reduces the samples of the window starting at
// windowStart to a Fragment.
func AggregateWindow(samples []motion.Sample, windowStart int64) Fragment {
	if len(samples) == 0 {
		return Fragment{}
	}

	n := len(samples)
	ax := make([]float32, n)
	ay := make([]float32, n)
	az := make([]float32, n)
	pitch := make([]float32, n)
	roll := make([]float32, n)
	azDeg := make([]float32, n)
	pitchDeg := make([]float32, n)
	rollDeg := make([]float32, n)
	offsets := make([]int64, n)

	for i, s := range samples {
		ax[i] = s.Acceleration.X
		ay[i] = s.Acceleration.Y
		az[i] = s.Acceleration.Z
		pitch[i] = s.Orientation.Pitch
		roll[i] = s.Orientation.Roll
		azDeg[i] = motion.Degrees(s.Orientation.Azimuth)
		pitchDeg[i] = motion.Degrees(s.Orientation.Pitch)
		rollDeg[i] = motion.Degrees(s.Orientation.Roll)
		offsets[i] = s.TimestampNanos - windowStart
	}

	return Fragment{
		SampleCount:    n,
		FirstTimestamp: samples[0].TimestampNanos,
		LastTimestamp:  samples[n-1].TimestampNanos,
		AccelX:         Stats(ax),
		AccelY:         Stats(ay),
		AccelZ:         Stats(az),
		Pitch:          Stats(pitch),
		Roll:           Stats(roll),
		AzimuthDelta:   AngularDelta(azDeg),
		PitchDelta:     AngularDelta(pitchDeg),
		RollDelta:      AngularDelta(rollDeg),
		AccelZSeries:   az,
		PitchSeries:    pitch,
		OffsetsNanos:   offsets,
	}
}
