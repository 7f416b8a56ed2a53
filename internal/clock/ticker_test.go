// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualTicker(t *testing.T) {
	m := NewManualTicker()
	want := time.Unix(1700000000, 0)

	got := make(chan time.Time, 1)
	go func() { got <- <-m.C() }()

	require.True(t, m.Tick(want))
	assert.Equal(t, want, <-got)

	m.Stop()
	assert.False(t, m.Tick(want))
}

func TestRateTicker(t *testing.T) {
	r := NewRateTicker(200)
	defer r.Stop()

	select {
	case <-r.C():
	case <-time.After(time.Second):
		t.Fatal("no tick from a 200 Hz ticker within a second")
	}
}

func TestManualTickerStopUnblocksTick(t *testing.T) {
	m := NewManualTicker()

	result := make(chan bool, 1)
	go func() { result <- m.Tick(time.Unix(0, 0)) }()

	// nobody receives; Stop must release the pending Tick
	time.Sleep(10 * time.Millisecond)
	m.Stop()
	m.Stop()

	select {
	case ok := <-result:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Tick still blocked after Stop")
	}
}
