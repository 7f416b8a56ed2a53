// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/relabs-tech/fall_monitor/internal/imu"
)

// Mock scenarios.
const (
	ScenarioIdle = "idle"
	ScenarioFall = "fall"
)

// FallCycle is the period of the mock fall scenario: 5s idle, impact,
// half a second toppling over, lying still until 11s, getting up, idle.
const FallCycle = 15 * time.Second

const g = imu.StandardGravity

type mockSource struct {
	scenario string
	start    time.Time
	now      func() time.Time
}

// NewMockSource creates a mock motion source that generates smooth
// synthetic motion for the given scenario, timed by the wall clock.
func NewMockSource(scenario string) (imu.MotionSource, error) {
	return NewMockSourceWithClock(scenario, time.Now)
}

// NewMockSourceWithClock is NewMockSource timed by now, e.g. a synthetic
// clock that runs a scenario faster than real time.
func NewMockSourceWithClock(scenario string, now func() time.Time) (imu.MotionSource, error) {
	src, err := newMockSource(scenario, now)
	if err != nil {
		return nil, err
	}
	return src, nil
}

func newMockSource(scenario string, now func() time.Time) (*mockSource, error) {
	switch scenario {
	case ScenarioIdle, ScenarioFall:
	default:
		return nil, fmt.Errorf("unknown mock scenario %q", scenario)
	}
	return &mockSource{scenario: scenario, now: now}, nil
}

func (m *mockSource) Init(ctx context.Context) error {
	m.start = m.now()
	return nil
}

func (m *mockSource) Read() (imu.MotionSample, error) {
	now := m.now()
	accel, gyro := MockMotion(m.scenario, now.Sub(m.start))
	return imu.MotionSample{Accel: accel, Gyro: gyro, Time: now}, nil
}

// MockMotion returns the synthetic reading at elapsed time el.
func MockMotion(scenario string, el time.Duration) (accel, gyro imu.Vec3) {
	if scenario != ScenarioFall {
		return idleMotion(el)
	}

	p := el % FallCycle
	sec := p.Seconds()
	switch {
	case p < 5*time.Second:
		return idleMotion(el)
	case p < 5050*time.Millisecond:
		// impact
		return imu.Vec3{Z: 3.5 * g}, imu.Vec3{Y: 2.0}
	case p < 5550*time.Millisecond:
		// toppling forward to 90° pitch in 0.5s
		th := (math.Pi / 2) * (sec - 5.05) / 0.5
		return imu.Vec3{X: g * math.Sin(th), Z: g * math.Cos(th)}, imu.Vec3{Y: math.Pi}
	case p < 11*time.Second:
		// lying still, with a little sensor noise
		return imu.Vec3{X: g}, imu.Vec3{X: 0.01, Y: -0.01, Z: 0.01}
	case p < 12*time.Second:
		// getting up over one second
		th := (math.Pi / 2) * (1 - (sec - 11))
		return imu.Vec3{X: g * math.Sin(th), Z: g * math.Cos(th)}, imu.Vec3{Y: -math.Pi / 2}
	default:
		return idleMotion(el)
	}
}

// idleMotion is a gentle ±5° roll sway at 0.3 Hz.
func idleMotion(el time.Duration) (accel, gyro imu.Vec3) {
	const (
		amp  = 5 * math.Pi / 180
		freq = 0.3
	)
	w := 2 * math.Pi * freq
	t := el.Seconds()
	roll := amp * math.Sin(w*t)
	return imu.Vec3{Y: g * math.Sin(roll), Z: g * math.Cos(roll)},
		imu.Vec3{X: amp * w * math.Cos(w*t)}
}
