// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package features

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/relabs-tech/bikepath_logger/internal/motion"
)

func TestAggregate_Empty(t *testing.T) {
	if got := Aggregate(nil); !reflect.DeepEqual(got, Fragment{}) {
		t.Errorf("expected zero fragment, got %+v", got)
	}
}

func TestAggregate(t *testing.T) {
	samples := []motion.Sample{
		{TimestampNanos: 100, Acceleration: motion.Vector3{X: 1, Y: 2, Z: 2},
			Orientation: motion.Orientation{Azimuth: 0, Pitch: 0.1, Roll: -0.2}},
		{TimestampNanos: 200, Acceleration: motion.Vector3{X: 3, Y: 2, Z: 2},
			Orientation: motion.Orientation{Azimuth: math.Pi / 2, Pitch: 0.1, Roll: -0.2}},
	}

	got := Aggregate(samples)
	if got.SampleCount != 2 || got.FirstTimestamp != 100 || got.LastTimestamp != 200 {
		t.Errorf("unexpected bookkeeping: %+v", got)
	}
	if got.AccelX.Mean != 2 || got.AccelX.Variance != 1 || got.AccelX.StandardDeviation != 1 {
		t.Errorf("unexpected accel x stats: %+v", got.AccelX)
	}
	if got.AccelY != (ChannelStats{Mean: 2}) {
		t.Errorf("unexpected accel y stats: %+v", got.AccelY)
	}
	if !near(got.Pitch.Mean, 0.1, 1e-6) || !near(got.Roll.Mean, -0.2, 1e-6) {
		t.Errorf("unexpected angle means: pitch %v roll %v", got.Pitch.Mean, got.Roll.Mean)
	}
	if !near(got.AzimuthDelta, 90, 1e-4) {
		t.Errorf("expected azimuth delta 90, got %v", got.AzimuthDelta)
	}
	if got.PitchDelta != 0 {
		t.Errorf("expected pitch delta 0, got %v", got.PitchDelta)
	}
}

func TestAggregateWindow_Series(t *testing.T) {
	// Window [15025000000, 15045000000] around a 10ms exposure at 15030000000.
	const windowStart = int64(15025000000)
	samples := []motion.Sample{
		{TimestampNanos: 15026000000, Acceleration: motion.Vector3{Z: 0.5}, Orientation: motion.Orientation{Pitch: 0.01}},
		{TimestampNanos: 15030000000, Acceleration: motion.Vector3{Z: -1.25}, Orientation: motion.Orientation{Pitch: 0.02}},
		{TimestampNanos: 15044500000, Acceleration: motion.Vector3{Z: 2}, Orientation: motion.Orientation{Pitch: -0.03}},
	}

	got := AggregateWindow(samples, windowStart)
	if want := []int64{1000000, 5000000, 19500000}; !reflect.DeepEqual(got.OffsetsNanos, want) {
		t.Errorf("expected offsets %v, got %v", want, got.OffsetsNanos)
	}
	if want := []float32{0.5, -1.25, 2}; !reflect.DeepEqual(got.AccelZSeries, want) {
		t.Errorf("expected accel z series %v, got %v", want, got.AccelZSeries)
	}
	if want := []float32{0.01, 0.02, -0.03}; !reflect.DeepEqual(got.PitchSeries, want) {
		t.Errorf("expected pitch series %v, got %v", want, got.PitchSeries)
	}

	// Without a window start, offsets count from the first sample.
	if first := Aggregate(samples).OffsetsNanos; first[0] != 0 || first[2] != 18500000 {
		t.Errorf("unexpected offsets from first sample: %v", first)
	}

	r := Record{WindowStart: windowStart, Fragment: got}
	fields := r.Fields()
	h := Header()
	cells := map[string]string{}
	for i, name := range h {
		cells[name] = fields[i]
	}
	if cells["offsets_ns"] != "1000000 5000000 19500000" {
		t.Errorf("unexpected offsets cell %q", cells["offsets_ns"])
	}
	if cells["accel_z_series"] != "0.5 -1.25 2" || cells["pitch_series"] != "0.01 0.02 -0.03" {
		t.Errorf("unexpected series cells %q / %q", cells["accel_z_series"], cells["pitch_series"])
	}
	// Offsets put every sample back inside the window.
	for i, off := range got.OffsetsNanos {
		if r.WindowStart+off != samples[i].TimestampNanos {
			t.Errorf("sample %d: window start + offset %d != timestamp %d", i, r.WindowStart+off, samples[i].TimestampNanos)
		}
	}
}

func TestAggregate_SnapshotIsolation(t *testing.T) {
	buf := motion.NewBuffer()
	buf.StartCollecting()
	for i := 0; i < 10; i++ {
		buf.Append(motion.Sample{TimestampNanos: int64(i), Acceleration: motion.Vector3{Z: float32(i)}})
	}

	snap := buf.Snapshot()
	before := Aggregate(snap.Samples)

	buf.Clear()
	for i := 0; i < 10; i++ {
		buf.Append(motion.Sample{TimestampNanos: int64(i), Acceleration: motion.Vector3{Z: 1000}})
	}

	if after := Aggregate(snap.Samples); !reflect.DeepEqual(after, before) {
		t.Errorf("fragment changed after buffer mutation:\n before %+v\n after  %+v", before, after)
	}
}

func TestRecordFields(t *testing.T) {
	r := Record{
		SessionID:       "s1",
		Sequence:        7,
		TimestampMillis: 1700000000123,
		Latitude:        52.520008,
		Longitude:       13.404954,
		SpeedKmh:        18.5,
		ExposureStart:   15030000000,
		Fragment: Fragment{
			SampleCount: 5,
			AccelX:      ChannelStats{Mean: 12.508, Variance: 234.24704, StandardDeviation: -6.4807405},
		},
		ImageFile: "1700000000123.jpg",
	}

	fields := r.Fields()
	h := Header()
	if len(fields) != len(h) {
		t.Fatalf("expected %d fields, got %d", len(h), len(fields))
	}

	col := func(name string) string {
		for i, n := range h {
			if n == name {
				return fields[i]
			}
		}
		t.Fatalf("missing column %s", name)
		return ""
	}

	checks := map[string]string{
		"session_id":        "s1",
		"sequence":          "7",
		"latitude":          "52.520008",
		"longitude":         "13.404954",
		"speed_kmh":         "18.5",
		"exposure_start_ns": "15030000000",
		"sample_count":      "5",
		"accel_x_mean":      "12.508",
		"accel_x_variance":  "234.24704",
		"accel_x_std_dev":   "-6.4807405",
		"image_file":        "1700000000123.jpg",
	}
	for name, want := range checks {
		if got := col(name); got != want {
			t.Errorf("%s: expected %q, got %q", name, want, got)
		}
	}

	for i, f := range fields {
		if strings.Contains(f, ",") {
			t.Errorf("field %s contains a comma: %q", h[i], f)
		}
	}
}

func TestHeaderIsCopy(t *testing.T) {
	h := Header()
	h[0] = "changed"
	if Header()[0] != "session_id" {
		t.Errorf("Header must return an independent slice")
	}
}
