// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package notify

import (
	"fmt"
	"io"
	"time"
)

// Serial writes "FALL,<unix-ms>" lines to the wearable's microcontroller,
// which drives the buzzer/vibration motor.
type Serial struct {
	w io.Writer
}

// NewSerial returns a notifier writing to w, usually the serial port the
// motion samples arrive on.
func NewSerial(w io.Writer) *Serial {
	return &Serial{w: w}
}

func (s *Serial) NotifyFall(at time.Time) error {
	if _, err := fmt.Fprintf(s.w, "FALL,%d\n", at.UnixMilli()); err != nil {
		return fmt.Errorf("serial notify: %w", err)
	}
	return nil
}
