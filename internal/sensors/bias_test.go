// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/fall_monitor/internal/imu"
)

func TestEstimateGyroBias(t *testing.T) {
	readings := []imu.Vec3{{X: 0.01, Y: -0.02, Z: 0.03}, {X: 0.03, Y: -0.04, Z: 0.01}}
	i, calls := 0, 0
	read := func() (imu.Vec3, error) {
		calls++
		if calls == 2 {
			return imu.Vec3{}, errors.New("spurious SPI error")
		}
		v := readings[i%len(readings)]
		i++
		return v, nil
	}

	bias, err := EstimateGyroBias(context.Background(), read, 4, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.02, bias.X, 1e-9)
	assert.InDelta(t, -0.03, bias.Y, 1e-9)
	assert.InDelta(t, 0.02, bias.Z, 1e-9)
}

func TestEstimateGyroBiasGivesUp(t *testing.T) {
	read := func() (imu.Vec3, error) { return imu.Vec3{}, errors.New("dead") }
	_, err := EstimateGyroBias(context.Background(), read, 3, 0)
	assert.Error(t, err)
}

func TestEstimateGyroBiasDisabled(t *testing.T) {
	read := func() (imu.Vec3, error) {
		t.Fatal("read called with n=0")
		return imu.Vec3{}, nil
	}
	bias, err := EstimateGyroBias(context.Background(), read, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, imu.Vec3{}, bias)
}

func TestMPU9250ReadBeforeInit(t *testing.T) {
	src := NewMPU9250Source(MPU9250Config{})
	_, err := src.Read()
	assert.ErrorIs(t, err, ErrNotInitialized)
}
