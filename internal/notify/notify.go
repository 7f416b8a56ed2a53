// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package notify delivers confirmed falls and classifier state to the
// outside world.
package notify

import (
	"errors"
	"log"
	"time"
)

// Notifier is told once per confirmed fall.
type Notifier interface {
	NotifyFall(at time.Time) error
}

// Func adapts a plain function to Notifier.
type Func func(at time.Time) error

func (f Func) NotifyFall(at time.Time) error { return f(at) }

// Log writes falls to the standard logger.
type Log struct{}

func (Log) NotifyFall(at time.Time) error {
	log.Printf("notify: FALL DETECTED at %s", at.Format(time.RFC3339Nano))
	return nil
}

// Multi fans a fall out to every notifier, even if some fail.
type Multi []Notifier

func (m Multi) NotifyFall(at time.Time) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyFall(at); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
