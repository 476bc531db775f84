// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"time"

	nmea "github.com/adrianmo/go-nmea"
)

const knotsToMps = 0.514444

// Fix represents a single combined GPS fix suitable for JSON and MQTT.
type Fix struct {
	Time       string  `json:"time"`        // e.g. "12:34:56"
	Date       string  `json:"date"`        // e.g. "06/12/25"
	TimeMillis int64   `json:"time_ms"`     // fix time, unix ms (0 if unknown)
	Latitude   float64 `json:"lat"`         // decimal degrees
	Longitude  float64 `json:"lon"`         // decimal degrees
	Altitude   float64 `json:"alt"`         // meters above MSL, from GGA
	SpeedKnots float64 `json:"speed_knots"` // speed over ground
	CourseDeg  float64 `json:"course_deg"`  // course over ground
	Validity   string  `json:"validity"`    // "A" (valid) / "V" (void), etc.
	Satellites int64   `json:"satellites"`
	HDOP       float64 `json:"hdop"`
}

// Valid reports whether the receiver flagged the fix as usable.
func (f Fix) Valid() bool { return f.Validity == nmea.ValidRMC }

// SpeedMps returns the ground speed in m/s.
func (f Fix) SpeedMps() float32 { return float32(f.SpeedKnots * knotsToMps) }

// Location converts the fix to the position handed to the capture loop.
func (f Fix) Location() Location {
	return Location{
		Latitude:   f.Latitude,
		Longitude:  f.Longitude,
		Altitude:   f.Altitude,
		Speed:      f.SpeedMps(),
		HasSpeed:   f.Valid(),
		TimeMillis: f.TimeMillis,
	}
}

// Location is a position with ground speed.
type Location struct {
	Latitude      float64 `json:"lat"`
	Longitude     float64 `json:"lon"`
	Altitude      float64 `json:"alt"`
	Speed         float32 `json:"speed_mps"`
	HasSpeed      bool    `json:"has_speed"`
	SpeedAccuracy float32 `json:"speed_accuracy_mps"`
	TimeMillis    int64   `json:"time_ms"`
}

// fixTime combines the RMC date and time into unix milliseconds.
func fixTime(d nmea.Date, t nmea.Time) int64 {
	if !d.Valid || !t.Valid {
		return 0
	}
	return time.Date(2000+d.YY, time.Month(d.MM), d.DD,
		t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC).UnixMilli()
}
