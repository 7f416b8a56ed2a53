// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package imu holds the motion sample types shared by sensor sources, the
// orientation estimator and the fall classifier.
package imu

import (
	"context"
	"math"
	"time"
)

// StandardGravity is used to express accelerations in g.
const StandardGravity = 9.81

const degToRad = math.Pi / 180.0

// Vec3 is a three-axis reading.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// AbsSum returns |x|+|y|+|z|.
func (v Vec3) AbsSum() float64 {
	return math.Abs(v.X) + math.Abs(v.Y) + math.Abs(v.Z)
}

// Sub returns v-o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

func (v Vec3) finite() bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// MotionSample is one timestamped 6-axis reading.
// Accel is in m/s², Gyro in rad/s.
type MotionSample struct {
	Accel Vec3      `json:"accel"`
	Gyro  Vec3      `json:"gyro"`
	Time  time.Time `json:"time"`
}

// AccelG returns the acceleration magnitude in units of standard gravity.
func (s MotionSample) AccelG() float64 {
	return s.Accel.Norm() / StandardGravity
}

// GyroMagnitude is the L1 norm of the angular rate (rad/s).
func (s MotionSample) GyroMagnitude() float64 {
	return s.Gyro.AbsSum()
}

// Valid reports whether the sample has a timestamp and finite components.
func (s MotionSample) Valid() bool {
	return !s.Time.IsZero() && s.Accel.finite() && s.Gyro.finite()
}

// MotionSource is anything that can provide motion samples on demand.
// Init may block (handshake, calibration) and is called once before the
// first Read. Read must not block longer than one sample interval.
type MotionSource interface {
	Init(ctx context.Context) error
	Read() (MotionSample, error)
}
