// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package features

import (
	"strconv"
	"strings"
)

// Record is the persisted unit: one per captured image.
type Record struct {
	SessionID       string `json:"session_id"`
	Sequence        uint64 `json:"sequence"`
	TimestampMillis int64  `json:"timestamp_ms"`

	Latitude           float64 `json:"latitude"`
	Longitude          float64 `json:"longitude"`
	Altitude           float64 `json:"altitude"`
	SpeedKmh           float32 `json:"speed_kmh"`
	SpeedAccuracy      float32 `json:"speed_accuracy_mps"`
	LocationTimeMillis int64   `json:"location_time_ms"`

	ExposureStart    int64 `json:"exposure_start_ns"`
	ExposureDuration int64 `json:"exposure_duration_ns"`
	FrameWindow      int64 `json:"frame_window_ns"`
	WindowStart      int64 `json:"window_start_ns"`
	WindowEnd        int64 `json:"window_end_ns"`

	Fragment

	ImageFile string `json:"image_file"`
}

var header = []string{
	"session_id", "sequence", "timestamp_ms",
	"latitude", "longitude", "altitude",
	"speed_kmh", "speed_accuracy_mps", "location_time_ms",
	"exposure_start_ns", "exposure_duration_ns", "frame_window_ns",
	"window_start_ns", "window_end_ns",
	"sample_count", "first_timestamp_ns", "last_timestamp_ns",
	"accel_x_mean", "accel_x_variance", "accel_x_std_dev",
	"accel_y_mean", "accel_y_variance", "accel_y_std_dev",
	"accel_z_mean", "accel_z_variance", "accel_z_std_dev",
	"pitch_mean", "pitch_variance", "pitch_std_dev",
	"roll_mean", "roll_variance", "roll_std_dev",
	"azimuth_delta_deg", "pitch_delta_deg", "roll_delta_deg",
	"image_file",
	"accel_z_series", "pitch_series", "offsets_ns",
}

// Header returns the ordered column names matching Record.Fields.
func Header() []string {
	out := make([]string, len(header))
	copy(out, header)
	return out
}

// Fields returns the record as CSV cells in Header order. Floats use the
// shortest representation that round-trips at their own precision, with a
// '.' decimal point.
func (r Record) Fields() []string {
	out := make([]string, 0, len(header))
	out = append(out,
		r.SessionID, utoa64(r.Sequence), itoa64(r.TimestampMillis),
		ftoa64(r.Latitude), ftoa64(r.Longitude), ftoa64(r.Altitude),
		ftoa32(r.SpeedKmh), ftoa32(r.SpeedAccuracy), itoa64(r.LocationTimeMillis),
		itoa64(r.ExposureStart), itoa64(r.ExposureDuration), itoa64(r.FrameWindow),
		itoa64(r.WindowStart), itoa64(r.WindowEnd),
		strconv.Itoa(r.SampleCount), itoa64(r.FirstTimestamp), itoa64(r.LastTimestamp),
	)
	for _, c := range []ChannelStats{r.AccelX, r.AccelY, r.AccelZ, r.Pitch, r.Roll} {
		out = append(out, ftoa32(c.Mean), ftoa32(c.Variance), ftoa32(c.StandardDeviation))
	}
	out = append(out,
		ftoa32(r.AzimuthDelta), ftoa32(r.PitchDelta), ftoa32(r.RollDelta),
		r.ImageFile,
		joinFloats(r.AccelZSeries), joinFloats(r.PitchSeries), joinInts(r.OffsetsNanos),
	)
	return out
}

// joinFloats writes a series as one space-separated cell.
func joinFloats(vs []float32) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = ftoa32(v)
	}
	return strings.Join(parts, " ")
}

func joinInts(vs []int64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = itoa64(v)
	}
	return strings.Join(parts, " ")
}

func itoa64(v int64) string  { return strconv.FormatInt(v, 10) }
func utoa64(v uint64) string { return strconv.FormatUint(v, 10) }
func ftoa32(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', -1, 32)
}
func ftoa64(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
