// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package clock provides the tick source that paces the control loop, so
// the loop can be driven by synthetic ticks in tests.
package clock

import (
	"sync"
	"time"
)

// Ticker delivers ticks at the configured rate.
type Ticker interface {
	// C returns the channel on which ticks are delivered.
	C() <-chan time.Time

	// Stop turns off the ticker. No more ticks are sent after Stop returns.
	Stop()
}

// RealTicker wraps time.Ticker.
type RealTicker struct {
	t *time.Ticker
}

// NewTicker returns a ticker with the given period.
func NewTicker(d time.Duration) *RealTicker {
	return &RealTicker{t: time.NewTicker(d)}
}

// NewRateTicker returns a ticker firing rateHz times per second.
func NewRateTicker(rateHz float64) *RealTicker {
	return NewTicker(time.Duration(float64(time.Second) / rateHz))
}

func (r *RealTicker) C() <-chan time.Time { return r.t.C }

func (r *RealTicker) Stop() { r.t.Stop() }

// ManualTicker only ticks when told to. Safe for use from multiple
// goroutines.
type ManualTicker struct {
	ch       chan time.Time
	done     chan struct{}
	stopOnce sync.Once
}

// NewManualTicker returns a ticker with an unbuffered channel; Tick blocks
// until the consumer receives or the ticker is stopped.
func NewManualTicker() *ManualTicker {
	return &ManualTicker{ch: make(chan time.Time), done: make(chan struct{})}
}

func (m *ManualTicker) C() <-chan time.Time { return m.ch }

// Tick delivers t to the consumer. It reports false if the ticker is stopped
// before the tick is received.
func (m *ManualTicker) Tick(t time.Time) bool {
	select {
	case <-m.done:
		return false
	default:
	}
	select {
	case m.ch <- t:
		return true
	case <-m.done:
		return false
	}
}

func (m *ManualTicker) Stop() {
	m.stopOnce.Do(func() { close(m.done) })
}
