// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/fall_monitor/internal/imu"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func sampleAt(ms int, accel, gyro imu.Vec3) imu.MotionSample {
	return imu.MotionSample{
		Accel: accel,
		Gyro:  gyro,
		Time:  t0.Add(time.Duration(ms) * time.Millisecond),
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func TestAccelTilt(t *testing.T) {
	t.Run("flat", func(t *testing.T) {
		p := AccelTilt(0, 0, imu.StandardGravity)
		assert.InDelta(t, 0, p.Pitch, 1e-9)
		assert.InDelta(t, 0, p.Roll, 1e-9)
		assert.Zero(t, p.Yaw)
	})

	t.Run("pitched 90 degrees", func(t *testing.T) {
		p := AccelTilt(imu.StandardGravity, 0, 0)
		assert.InDelta(t, 90, p.Pitch, 1e-9)
	})

	t.Run("rolled 45 degrees", func(t *testing.T) {
		p := AccelTilt(0, 1, 1)
		assert.InDelta(t, 45, p.Roll, 1e-9)
		assert.InDelta(t, 0, p.Pitch, 1e-9)
	})

	t.Run("zero vector stays finite", func(t *testing.T) {
		p := AccelTilt(0, 0, 0)
		assert.True(t, finite(p.Pitch))
		assert.True(t, finite(p.Roll))
	})
}

func TestWrapDegrees(t *testing.T) {
	cases := map[float64]float64{
		0:    0,
		179:  179,
		180:  180,
		-180: 180,
		190:  -170,
		-190: 170,
		540:  180,
		725:  5,
	}
	for in, want := range cases {
		assert.InDelta(t, want, WrapDegrees(in), 1e-9, "WrapDegrees(%v)", in)
	}
}

func TestEstimatorFirstUpdateSeedsFromAccel(t *testing.T) {
	e := NewEstimator()

	// a large gyro rate on the first sample must not be integrated
	p := e.Update(sampleAt(0, imu.Vec3{X: 1, Z: 1}, imu.Vec3{X: 100, Y: 100}))

	require.True(t, finite(p.Pitch))
	require.True(t, finite(p.Roll))
	assert.InDelta(t, 45, p.Pitch, 1e-9)
	assert.InDelta(t, 0, p.Roll, 1e-9)
	assert.Equal(t, p, e.Pose())
}

func TestEstimatorComplementaryBlend(t *testing.T) {
	e := NewEstimator()
	e.Update(sampleAt(0, imu.Vec3{Z: imu.StandardGravity}, imu.Vec3{}))

	// 1 rad/s about Y for 10ms while accel still says flat
	p := e.Update(sampleAt(10, imu.Vec3{Z: imu.StandardGravity}, imu.Vec3{Y: 1}))

	gyroPitch := 0.01 * 180 / math.Pi
	assert.InDelta(t, GyroWeight*gyroPitch, p.Pitch, 1e-9)
	assert.InDelta(t, 0, p.Roll, 1e-9)
}

func TestEstimatorSkipsIntegrationOnNonPositiveDt(t *testing.T) {
	e := NewEstimator()
	e.Update(sampleAt(100, imu.Vec3{Z: imu.StandardGravity}, imu.Vec3{}))

	p := e.Update(sampleAt(100, imu.Vec3{Z: imu.StandardGravity}, imu.Vec3{X: 50, Y: 50}))
	assert.InDelta(t, 0, p.Pitch, 1e-9)
	assert.InDelta(t, 0, p.Roll, 1e-9)

	p = e.Update(sampleAt(50, imu.Vec3{Z: imu.StandardGravity}, imu.Vec3{X: 50, Y: 50}))
	assert.InDelta(t, 0, p.Pitch, 1e-9)
	assert.InDelta(t, 0, p.Roll, 1e-9)
}

func TestEstimatorConvergesToGravity(t *testing.T) {
	e := NewEstimator()
	e.Update(sampleAt(0, imu.Vec3{Z: imu.StandardGravity}, imu.Vec3{}))

	// device tipped onto its side; gyro reports nothing
	tilted := imu.Vec3{Y: imu.StandardGravity}
	var p Pose
	for i := 1; i <= 1000; i++ {
		p = e.Update(sampleAt(i*5, tilted, imu.Vec3{}))
	}
	assert.InDelta(t, 90, p.Roll, 0.01)
}

func TestEstimatorBlendsAcrossWrap(t *testing.T) {
	e := NewEstimator()
	e.Update(sampleAt(0, imu.Vec3{Y: 0.02, Z: -1}, imu.Vec3{}))
	require.Greater(t, e.Pose().Roll, 170.0)

	// accel now just past -180; estimate must stay near the seam, not jump toward 0
	p := e.Update(sampleAt(5, imu.Vec3{Y: -0.02, Z: -1}, imu.Vec3{}))
	assert.Greater(t, math.Abs(p.Roll), 170.0)
}

func TestEstimatorReset(t *testing.T) {
	e := NewEstimator()
	e.Update(sampleAt(0, imu.Vec3{X: 1, Z: 1}, imu.Vec3{}))
	e.Reset()
	assert.Equal(t, Pose{}, e.Pose())

	p := e.Update(sampleAt(10, imu.Vec3{Z: 1}, imu.Vec3{Y: 10}))
	assert.InDelta(t, 0, p.Pitch, 1e-9)
}

func TestEstimatorStability(t *testing.T) {
	// 10,000 ticks at 200 Hz of bounded noise plus large rotation rates
	rng := rand.New(rand.NewSource(42))
	e := NewEstimator()

	for i := 0; i < 10000; i++ {
		accel := imu.Vec3{
			X: (rng.Float64()*2 - 1) * 4 * imu.StandardGravity,
			Y: (rng.Float64()*2 - 1) * 4 * imu.StandardGravity,
			Z: (rng.Float64()*2 - 1) * 4 * imu.StandardGravity,
		}
		gyro := imu.Vec3{
			X: (rng.Float64()*2 - 1) * 30,
			Y: (rng.Float64()*2 - 1) * 30,
			Z: (rng.Float64()*2 - 1) * 30,
		}
		p := e.Update(sampleAt(i*5, accel, gyro))

		require.True(t, finite(p.Pitch), "tick %d pitch", i)
		require.True(t, finite(p.Roll), "tick %d roll", i)
		require.GreaterOrEqual(t, p.Pitch, -180.0)
		require.LessOrEqual(t, p.Pitch, 180.0)
		require.GreaterOrEqual(t, p.Roll, -180.0)
		require.LessOrEqual(t, p.Roll, 180.0)
	}
}
