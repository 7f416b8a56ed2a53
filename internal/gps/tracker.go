// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package gps keeps the last known position from an NMEA receiver so fall
// events can say where they happened.
package gps

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
)

// OpenPort opens the receiver's serial port.
func OpenPort(portName string, baud int) (io.ReadWriteCloser, error) {
	serialOpts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return nil, fmt.Errorf("GPS serial open %s: %w", portName, err)
	}
	return port, nil
}

// Tracker accumulates NMEA sentences into the latest valid fix.
type Tracker struct {
	mu      sync.RWMutex
	current Fix
	valid   bool
}

// NewTracker returns a tracker with no fix.
func NewTracker() *Tracker {
	return &Tracker{}
}

// LastFix returns the latest valid fix. ok is false until the receiver has
// reported one.
func (t *Tracker) LastFix() (Fix, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current, t.valid
}

// HandleLine feeds one NMEA line. Lines that are not sentences or fail to
// parse are ignored; GPS receivers are noisy.
func (t *Tracker) HandleLine(line string) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch sentence.DataType() {
	case nmea.TypeRMC:
		m := sentence.(nmea.RMC)
		if m.Validity != nmea.ValidRMC {
			t.current.Validity = m.Validity
			t.valid = false
			return
		}
		t.current.Time = m.Time.String()
		t.current.Date = m.Date.String()
		t.current.Latitude = m.Latitude
		t.current.Longitude = m.Longitude
		t.current.SpeedKnots = m.Speed
		t.current.CourseDeg = m.Course
		t.current.Validity = m.Validity
		t.valid = true

	case nmea.TypeGGA:
		m := sentence.(nmea.GGA)
		if m.FixQuality == nmea.Invalid {
			return
		}
		t.current.AltitudeM = m.Altitude

	default:
		// ignore other sentence types (GSA, GSV, VTG, ...)
	}
}

// Run reads lines from r until it fails or ctx is done. r is closed when
// ctx is cancelled to unblock the read, and when Run returns.
func (t *Tracker) Run(ctx context.Context, r io.ReadCloser) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		r.Close()
	}()

	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			t.HandleLine(line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			log.Printf("gps: read error: %v", err)
			return fmt.Errorf("GPS read: %w", err)
		}
	}
}
