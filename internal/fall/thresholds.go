// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fall

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidConfig is wrapped by every threshold validation error.
var ErrInvalidConfig = errors.New("invalid fall detection config")

// Thresholds configures the classifier. Immutable once a Classifier is built.
type Thresholds struct {
	SampleRateHz           float64
	ImpactThresholdG       float64
	AngleThresholdDeg      float64
	MotionThresholdRadPerS float64
	InactivityTime         time.Duration
	ImpactTimeout          time.Duration
}

// DefaultThresholds returns the values the wearable ships with.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SampleRateHz:           100,
		ImpactThresholdG:       2.8,
		AngleThresholdDeg:      45,
		MotionThresholdRadPerS: 0.15,
		InactivityTime:         3 * time.Second,
		ImpactTimeout:          10 * time.Second,
	}
}

// SampleInterval is the tick period derived from SampleRateHz.
func (t Thresholds) SampleInterval() time.Duration {
	if t.SampleRateHz <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / t.SampleRateHz)
}

// Validate rejects non-positive thresholds and a confirmation window that
// cannot fit the inactivity period.
func (t Thresholds) Validate() error {
	positive := []struct {
		name string
		v    float64
	}{
		{"sample rate", t.SampleRateHz},
		{"impact threshold", t.ImpactThresholdG},
		{"angle threshold", t.AngleThresholdDeg},
		{"motion threshold", t.MotionThresholdRadPerS},
	}
	for _, p := range positive {
		if math.IsNaN(p.v) || math.IsInf(p.v, 0) || p.v <= 0 {
			return fmt.Errorf("%w: %s must be > 0, got %v", ErrInvalidConfig, p.name, p.v)
		}
	}
	if t.SampleInterval() <= 0 {
		return fmt.Errorf("%w: sample rate %v Hz gives no usable tick interval", ErrInvalidConfig, t.SampleRateHz)
	}
	if t.InactivityTime < 0 {
		return fmt.Errorf("%w: inactivity time must be >= 0, got %v", ErrInvalidConfig, t.InactivityTime)
	}
	if t.ImpactTimeout <= t.InactivityTime {
		return fmt.Errorf("%w: impact timeout (%v) must exceed inactivity time (%v)",
			ErrInvalidConfig, t.ImpactTimeout, t.InactivityTime)
	}
	return nil
}
