// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package fall classifies a stream of motion samples and orientation
// estimates into normal motion, possible impact and confirmed fall.
package fall

import (
	"math"
	"time"

	"github.com/relabs-tech/fall_monitor/internal/imu"
	"github.com/relabs-tech/fall_monitor/internal/orientation"
)

// recoveryFactor scales the motion threshold needed to leave PostFall.
const recoveryFactor = 2.0

// Step describes what one classifier tick did.
type Step struct {
	From Phase
	To   Phase
	// Fall is set on the single tick that confirms a fall.
	Fall bool
	At   time.Time
}

// Changed reports whether the tick moved to a different phase.
func (s Step) Changed() bool {
	return s.From != s.To
}

// Classifier is the fall detection state machine. It is not safe for
// concurrent use; one control loop owns it.
type Classifier struct {
	th    Thresholds
	state State
}

// NewClassifier validates th and returns a classifier in Normal.
func NewClassifier(th Thresholds) (*Classifier, error) {
	if err := th.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{th: th, state: Normal{}}, nil
}

// Thresholds returns the configuration the classifier was built with.
func (c *Classifier) Thresholds() Thresholds {
	return c.th
}

// State returns the current state value.
func (c *Classifier) State() State {
	return c.state
}

// Phase is shorthand for State().Phase().
func (c *Classifier) Phase() Phase {
	return c.state.Phase()
}

// Step advances the state machine with one sample and the orientation
// estimated from it. The sample timestamp is the clock.
func (c *Classifier) Step(s imu.MotionSample, pose orientation.Pose) Step {
	now := s.Time
	from := c.state.Phase()
	fell := false

	switch st := c.state.(type) {
	case Normal:
		if s.AccelG() > c.th.ImpactThresholdG {
			c.state = ImpactDetected{
				ImpactAt:      now,
				BaselinePitch: pose.Pitch,
				BaselineRoll:  pose.Roll,
			}
		}

	case ImpactDetected:
		c.state, fell = c.stepImpact(st, s, pose)

	case PostFall:
		if s.GyroMagnitude() > recoveryFactor*c.th.MotionThresholdRadPerS {
			c.state = Normal{}
		}
	}

	return Step{From: from, To: c.state.Phase(), Fall: fell, At: now}
}

// stepImpact checks stillness confirmation before the impact timeout, so a
// tick that satisfies both reports the fall.
func (c *Classifier) stepImpact(st ImpactDetected, s imu.MotionSample, pose orientation.Pose) (State, bool) {
	now := s.Time

	// angles are wrapped, so compare along the shortest arc
	angleChanged := math.Abs(orientation.WrapDegrees(pose.Pitch-st.BaselinePitch)) > c.th.AngleThresholdDeg ||
		math.Abs(orientation.WrapDegrees(pose.Roll-st.BaselineRoll)) > c.th.AngleThresholdDeg

	if angleChanged {
		if s.GyroMagnitude() < c.th.MotionThresholdRadPerS {
			if st.StillSince.IsZero() {
				st.StillSince = now
			}
			if now.Sub(st.StillSince) >= c.th.InactivityTime {
				return PostFall{ConfirmedAt: now}, true
			}
		} else {
			st.StillSince = time.Time{}
		}
	}

	if now.Sub(st.ImpactAt) > c.th.ImpactTimeout {
		return Normal{}, false
	}
	return st, false
}
