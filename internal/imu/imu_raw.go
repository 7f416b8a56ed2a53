// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

// IMURaw represents a single raw accel+gyro sample in sensor counts.
type IMURaw struct {
	Source string `json:"source"` // "mpu9250", "serial", "mock"

	Ax int16 `json:"ax"` // accel
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`

	Gx int16 `json:"gx"` // gyro
	Gy int16 `json:"gy"`
	Gz int16 `json:"gz"`
}

// accelLSBPerG and gyroLSBPerDPS are the MPU-9250 sensitivities indexed by
// the full-scale range code (0-3).
var (
	accelLSBPerG  = [4]float64{16384, 8192, 4096, 2048}
	gyroLSBPerDPS = [4]float64{131, 65.5, 32.8, 16.4}
)

// Ranges selects the full-scale setting used to convert raw counts.
// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
// Gyroscope: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
type Ranges struct {
	Accel byte
	Gyro  byte
}

// ScaleRaw converts raw counts into SI units. Out-of-range codes are
// clamped to the widest range.
func ScaleRaw(raw IMURaw, r Ranges) (accel, gyro Vec3) {
	ar := r.Accel
	if ar > 3 {
		ar = 3
	}
	gr := r.Gyro
	if gr > 3 {
		gr = 3
	}

	aScale := StandardGravity / accelLSBPerG[ar]
	gScale := degToRad / gyroLSBPerDPS[gr]

	accel = Vec3{
		X: float64(raw.Ax) * aScale,
		Y: float64(raw.Ay) * aScale,
		Z: float64(raw.Az) * aScale,
	}
	gyro = Vec3{
		X: float64(raw.Gx) * gScale,
		Y: float64(raw.Gy) * gScale,
		Z: float64(raw.Gz) * gScale,
	}
	return accel, gyro
}
