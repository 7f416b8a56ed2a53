// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package notify

import (
	"time"

	"github.com/relabs-tech/fall_monitor/internal/fall"
	"github.com/relabs-tech/fall_monitor/internal/gps"
	"github.com/relabs-tech/fall_monitor/internal/orientation"
)

// EventMessage is the JSON published on the fall event topic.
type EventMessage struct {
	Type     string    `json:"type"` // always "fall"
	Time     time.Time `json:"time"`
	UnixMs   int64     `json:"unix_ms"`
	Location *gps.Fix  `json:"location,omitempty"`
}

// StateMessage is the JSON published on the state topic on every phase change.
type StateMessage struct {
	Phase fall.Phase       `json:"phase"`
	Since time.Time        `json:"since"`
	Pose  orientation.Pose `json:"pose"`
}

// PoseMessage is the JSON published on the pose topic.
type PoseMessage struct {
	orientation.Pose
	Time time.Time `json:"time"`
}
