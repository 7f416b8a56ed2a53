// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fall

import (
	"fmt"
	"time"
)

// Phase names a classifier state.
type Phase int

const (
	PhaseNormal Phase = iota
	PhaseImpactDetected
	PhasePostFall
)

func (p Phase) String() string {
	switch p {
	case PhaseNormal:
		return "normal"
	case PhaseImpactDetected:
		return "impact_detected"
	case PhasePostFall:
		return "post_fall"
	default:
		return "unknown"
	}
}

// MarshalText lets phases appear by name in JSON payloads.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a phase name produced by MarshalText.
func (p *Phase) UnmarshalText(b []byte) error {
	switch string(b) {
	case "normal":
		*p = PhaseNormal
	case "impact_detected":
		*p = PhaseImpactDetected
	case "post_fall":
		*p = PhasePostFall
	default:
		return fmt.Errorf("unknown phase %q", b)
	}
	return nil
}

// State is one of Normal, ImpactDetected or PostFall.
type State interface {
	Phase() Phase
}

// Normal is the armed state: waiting for an impact.
type Normal struct{}

func (Normal) Phase() Phase { return PhaseNormal }

// ImpactDetected holds the data of a possible fall in progress.
type ImpactDetected struct {
	ImpactAt      time.Time
	BaselinePitch float64
	BaselineRoll  float64
	// StillSince is zero until the wearer is lying still at a changed angle.
	StillSince time.Time
}

func (ImpactDetected) Phase() Phase { return PhaseImpactDetected }

// PostFall waits for renewed movement before re-arming.
type PostFall struct {
	ConfirmedAt time.Time
}

func (PostFall) Phase() Phase { return PhasePostFall }
