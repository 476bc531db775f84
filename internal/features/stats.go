// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package features

import "math"

// The reductions below work in float32 and sum sequentially. Products are
// converted explicitly so the compiler cannot fuse them into an FMA, which
// would change the last bit of the persisted values.

// Mean returns the arithmetic mean of values, or 0 for an empty input.
func Mean(values []float32) float32 {
	if len(values) == 0 {
		return 0
	}
	var sum float32
	for _, v := range values {
		sum += v
	}
	return sum / float32(len(values))
}

// Variance returns the mean squared deviation of values from mean, or 0 for
// an empty input.
func Variance(mean float32, values []float32) float32 {
	if len(values) == 0 {
		return 0
	}
	var sum float32
	for _, v := range values {
		d := v - mean
		sum += float32(d * d)
	}
	return sum / float32(len(values))
}

// StandardDeviation returns sqrt(|variance|) carrying the sign of variance.
// A negative variance therefore yields a negative result instead of NaN.
func StandardDeviation(variance float32) float32 {
	sd := float32(math.Sqrt(math.Abs(float64(variance))))
	if variance < 0 {
		return -sd
	}
	return sd
}

// AngularDelta returns the absolute difference between the first and last
// angle (degrees), folded into [0, 180]. Intermediate values are ignored.
func AngularDelta(angles []float32) float32 {
	if len(angles) == 0 {
		return 0
	}
	diff := angles[len(angles)-1] - angles[0]
	if diff < 0 {
		diff = -diff
	}
	if diff > 180 {
		diff = 360 - diff
	}
	return diff
}

// ChannelStats is the (mean, variance, standard deviation) triple of one
// channel.
type ChannelStats struct {
	Mean              float32 `json:"mean"`
	Variance          float32 `json:"variance"`
	StandardDeviation float32 `json:"std_dev"`
}

// Stats reduces values to a ChannelStats.
func Stats(values []float32) ChannelStats {
	m := Mean(values)
	v := Variance(m, values)
	return ChannelStats{Mean: m, Variance: v, StandardDeviation: StandardDeviation(v)}
}
