// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
)

const radToDeg = 180.0 / math.Pi

// Pose is the canonical representation of orientation for the app, in degrees.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// AccelTilt computes roll and pitch from accelerometer data only.
// Yaw is always 0, there is no magnetometer in the fall monitor.
//
// Uses simple tilt formulas:
//
//	roll  = atan2(ay, az)
//	pitch = atan2(ax, sqrt(ay² + az²))
func AccelTilt(ax, ay, az float64) Pose {
	rollRad := math.Atan2(ay, az)
	pitchRad := math.Atan2(ax, math.Sqrt(ay*ay+az*az))

	return Pose{
		Roll:  rollRad * radToDeg,
		Pitch: pitchRad * radToDeg,
	}
}

// WrapDegrees maps an angle into (-180, 180].
func WrapDegrees(deg float64) float64 {
	if deg > -180 && deg <= 180 {
		return deg
	}
	w := math.Mod(deg+180, 360)
	if w <= 0 {
		w += 360
	}
	return w - 180
}
