// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package monitor runs the fall detection control loop: one tick reads a
// sample, updates the orientation estimate and steps the classifier.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/relabs-tech/fall_monitor/internal/clock"
	"github.com/relabs-tech/fall_monitor/internal/fall"
	"github.com/relabs-tech/fall_monitor/internal/imu"
	"github.com/relabs-tech/fall_monitor/internal/notify"
	"github.com/relabs-tech/fall_monitor/internal/orientation"
)

var (
	// ErrSensorInit wraps a failed sensor handshake. The loop never starts.
	ErrSensorInit = errors.New("sensor initialization failed")
	// ErrInvalidSample marks a sample with NaN/Inf components or no timestamp.
	ErrInvalidSample = errors.New("invalid motion sample")
)

const skipLogEvery = 100

// Observer sees every processed tick, e.g. to publish state.
type Observer interface {
	Observe(step fall.Step, pose orientation.Pose)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(step fall.Step, pose orientation.Pose)

func (f ObserverFunc) Observe(step fall.Step, pose orientation.Pose) { f(step, pose) }

// Stats counts what the loop has done.
type Stats struct {
	Ticks   int // ticks that advanced the state machine
	Skipped int // ticks dropped because of read errors or invalid samples
	Falls   int
}

// Monitor owns the estimator and classifier for one sensor.
type Monitor struct {
	source     imu.MotionSource
	estimator  *orientation.Estimator
	classifier *fall.Classifier
	notifier   notify.Notifier
	observer   Observer
	stats      Stats
}

// New wires a monitor. notifier and observer may be nil.
func New(source imu.MotionSource, est *orientation.Estimator, cls *fall.Classifier, notifier notify.Notifier, observer Observer) *Monitor {
	if notifier == nil {
		notifier = notify.Log{}
	}
	return &Monitor{
		source:     source,
		estimator:  est,
		classifier: cls,
		notifier:   notifier,
		observer:   observer,
	}
}

// Init runs the sensor handshake. It may block while the sensor retries.
func (m *Monitor) Init(ctx context.Context) error {
	if err := m.source.Init(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrSensorInit, err)
	}
	return nil
}

// Tick processes one sample. A read failure or invalid sample skips the tick
// without touching the estimator or classifier; the error is returned for
// logging only.
func (m *Monitor) Tick() (fall.Step, error) {
	s, err := m.source.Read()
	if err != nil {
		m.stats.Skipped++
		return fall.Step{}, fmt.Errorf("read: %w", err)
	}
	if !s.Valid() {
		m.stats.Skipped++
		return fall.Step{}, ErrInvalidSample
	}

	pose := m.estimator.Update(s)
	step := m.classifier.Step(s, pose)
	m.stats.Ticks++

	if step.Changed() {
		log.Printf("monitor: %s -> %s at %s (accel=%.2fg gyro=%.3frad/s pitch=%.1f roll=%.1f)",
			step.From, step.To, step.At.Format(time.RFC3339Nano),
			s.AccelG(), s.GyroMagnitude(), pose.Pitch, pose.Roll)
	}
	if step.Fall {
		m.stats.Falls++
		if err := m.notifier.NotifyFall(step.At); err != nil {
			log.Printf("monitor: fall notification error: %v", err)
		}
	}
	if m.observer != nil {
		m.observer.Observe(step, pose)
	}
	return step, nil
}

// Run initializes the sensor and then ticks on every value from ticks until
// ctx is done. An initialization failure is returned before any tick.
func (m *Monitor) Run(ctx context.Context, ticks clock.Ticker) error {
	defer ticks.Stop()

	if err := m.Init(ctx); err != nil {
		return err
	}
	log.Printf("monitor: sensor ready, classifier in %s", m.classifier.Phase())

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticks.C():
			if _, err := m.Tick(); err != nil {
				// a silent or flaky sensor would otherwise flood the log
				if n := m.stats.Skipped; n == 1 || n%skipLogEvery == 0 {
					log.Printf("monitor: skipped tick (%d so far): %v", n, err)
				}
			}
		}
	}
}

// Stats returns the loop counters.
func (m *Monitor) Stats() Stats {
	return m.stats
}

// Phase returns the classifier phase.
func (m *Monitor) Phase() fall.Phase {
	return m.classifier.Phase()
}

// Pose returns the latest orientation estimate.
func (m *Monitor) Pose() orientation.Pose {
	return m.estimator.Pose()
}
