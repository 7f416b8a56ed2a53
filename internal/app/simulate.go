// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/relabs-tech/fall_monitor/internal/fall"
	"github.com/relabs-tech/fall_monitor/internal/monitor"
	"github.com/relabs-tech/fall_monitor/internal/notify"
	"github.com/relabs-tech/fall_monitor/internal/orientation"
	"github.com/relabs-tech/fall_monitor/internal/sensors"
)

// simStart is the synthetic clock origin, so runs print the same times.
var simStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// RunSimulation replays a mock scenario through the full detection pipeline
// on a synthetic clock, as fast as possible, and prints every transition
// and fall to out. No hardware or broker is needed.
func RunSimulation(scenario string, duration time.Duration, th fall.Thresholds, out io.Writer) (monitor.Stats, error) {
	cls, err := fall.NewClassifier(th)
	if err != nil {
		return monitor.Stats{}, err
	}

	interval := th.SampleInterval()
	now := simStart
	src, err := sensors.NewMockSourceWithClock(scenario, func() time.Time { return now })
	if err != nil {
		return monitor.Stats{}, err
	}

	elapsed := func(t time.Time) float64 { return t.Sub(simStart).Seconds() }

	fallPrinter := notify.Func(func(at time.Time) error {
		_, err := fmt.Fprintf(out, "[%8.3fs] FALL DETECTED\n", elapsed(at))
		return err
	})
	transitions := monitor.ObserverFunc(func(step fall.Step, pose orientation.Pose) {
		if step.Changed() {
			fmt.Fprintf(out, "[%8.3fs] %-15s -> %-15s ROLL=%7.2f  PITCH=%7.2f\n",
				elapsed(step.At), step.From, step.To, pose.Roll, pose.Pitch)
		}
	})

	m := monitor.New(src, orientation.NewEstimator(), cls, fallPrinter, transitions)
	if err := m.Init(context.Background()); err != nil {
		return monitor.Stats{}, err
	}

	for ; now.Sub(simStart) < duration; now = now.Add(interval) {
		if _, err := m.Tick(); err != nil {
			fmt.Fprintf(out, "[%8.3fs] skipped: %v\n", elapsed(now), err)
		}
	}

	stats := m.Stats()
	fmt.Fprintf(out, "%d ticks, %d skipped, %d falls, final phase %s\n",
		stats.Ticks, stats.Skipped, stats.Falls, m.Phase())
	return stats, nil
}
