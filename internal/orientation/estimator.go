// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"time"

	"github.com/relabs-tech/fall_monitor/internal/imu"
)

// Complementary filter weights: gyro for short-term change, accel for
// long-term drift correction against gravity.
const (
	GyroWeight  = 0.98
	AccelWeight = 1 - GyroWeight
)

// Estimator keeps a running pitch/roll estimate from a stream of motion
// samples. The zero value is ready to use.
type Estimator struct {
	pose Pose
	last time.Time
}

// NewEstimator returns an estimator with no filter memory.
func NewEstimator() *Estimator {
	return &Estimator{}
}

// Update fuses one sample into the estimate and returns the new pose.
//
// dt is taken from consecutive sample timestamps. The first sample has no
// previous timestamp, so the estimate is seeded from the accelerometer tilt.
// A non-positive dt (duplicate or out-of-order timestamp) skips gyro
// integration for that sample.
func (e *Estimator) Update(s imu.MotionSample) Pose {
	acc := AccelTilt(s.Accel.X, s.Accel.Y, s.Accel.Z)

	if e.last.IsZero() {
		e.pose = acc
		e.last = s.Time
		return e.pose
	}

	dt := s.Time.Sub(e.last).Seconds()
	if dt > 0 {
		e.last = s.Time
	} else {
		dt = 0
	}

	pitchGyro := e.pose.Pitch + s.Gyro.Y*dt*radToDeg
	rollGyro := e.pose.Roll + s.Gyro.X*dt*radToDeg

	e.pose.Pitch = fuse(pitchGyro, acc.Pitch)
	e.pose.Roll = fuse(rollGyro, acc.Roll)
	return e.pose
}

// fuse computes GyroWeight*gyro + AccelWeight*acc along the shortest arc, so
// estimates on either side of ±180° blend instead of averaging through 0.
func fuse(gyro, acc float64) float64 {
	if math.IsNaN(gyro) || math.IsInf(gyro, 0) {
		return acc
	}
	return WrapDegrees(gyro + AccelWeight*WrapDegrees(acc-gyro))
}

// Pose returns the current estimate without updating it.
func (e *Estimator) Pose() Pose {
	return e.pose
}

// Reset drops the filter memory; the next Update seeds from the accelerometer.
func (e *Estimator) Reset() {
	e.pose = Pose{}
	e.last = time.Time{}
}
