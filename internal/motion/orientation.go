// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package motion

import (
	"math"

	"github.com/golang/geo/r3"
)

// minFieldNorm is the smallest |E x A| accepted as a usable magnetic
// reading. Below it the device is close to free fall or the magnetometer
// is silent.
const minFieldNorm = 0.1

// OrientationFromField computes azimuth, pitch and roll (radians) from the
// gravity vector and the geomagnetic field, both in device coordinates.
// ok is false when the field is unusable.
//
// The rotation matrix rows are H = E x A, M = A x H and A (all normalized);
// the angles follow the usual convention:
//
//	azimuth = atan2(H.y, M.y)
//	pitch   = asin(-A.y)
//	roll    = atan2(-A.x, A.z)
func OrientationFromField(accel, mag Vector3) (Orientation, bool) {
	a := toR3(accel)
	e := toR3(mag)

	h := e.Cross(a)
	if h.Norm() < minFieldNorm || a.Norm() == 0 {
		return Orientation{}, false
	}
	h = h.Normalize()
	a = a.Normalize()
	m := a.Cross(h)

	return Orientation{
		Azimuth: float32(math.Atan2(h.Y, m.Y)),
		Pitch:   float32(math.Asin(-a.Y)),
		Roll:    float32(math.Atan2(-a.X, a.Z)),
	}, true
}

// OrientationFromAccel estimates pitch and roll from the accelerometer
// alone. Azimuth is 0 since there is no heading reference.
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func OrientationFromAccel(accel Vector3) Orientation {
	ax := float64(accel.X)
	ay := float64(accel.Y)
	az := float64(accel.Z)

	return Orientation{
		Azimuth: 0,
		Pitch:   float32(math.Atan2(-ax, math.Sqrt(ay*ay+az*az))),
		Roll:    float32(math.Atan2(ay, az)),
	}
}

// Degrees converts radians to degrees in float32.
func Degrees(rad float32) float32 {
	return rad * (180 / math.Pi)
}

func toR3(v Vector3) r3.Vector {
	return r3.Vector{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)}
}
