// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/relabs-tech/fall_monitor/internal/imu"
)

// ErrNotInitialized is returned by Read before a successful Init.
var ErrNotInitialized = errors.New("sensor not initialized")

// maxBiasFailures bounds read errors tolerated while estimating bias.
const maxBiasFailures = 10

// EstimateGyroBias averages n gyro readings taken every interval while the
// device is still. Occasional read errors are skipped.
func EstimateGyroBias(ctx context.Context, read func() (imu.Vec3, error), n int, interval time.Duration) (imu.Vec3, error) {
	if n <= 0 {
		return imu.Vec3{}, nil
	}

	var sum imu.Vec3
	got, failures := 0, 0
	for got < n {
		g, err := read()
		if err != nil {
			failures++
			if failures > maxBiasFailures {
				return imu.Vec3{}, fmt.Errorf("too many read errors (%d of %d samples): %w", failures, got, err)
			}
		} else {
			sum.X += g.X
			sum.Y += g.Y
			sum.Z += g.Z
			got++
		}

		if interval > 0 {
			select {
			case <-ctx.Done():
				return imu.Vec3{}, ctx.Err()
			case <-time.After(interval):
			}
		}
	}

	k := float64(got)
	return imu.Vec3{X: sum.X / k, Y: sum.Y / k, Z: sum.Z / k}, nil
}
