// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/relabs-tech/fall_monitor/internal/imu"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"
)

// MPU9250Config describes the wiring and startup behaviour of the IMU.
type MPU9250Config struct {
	SPIDevice   string // e.g. "/dev/spidev6.0"
	CSPin       string // e.g. "18"
	Ranges      imu.Ranges
	InitRetries int
	RetryDelay  time.Duration
	BiasSamples int // static gyro bias samples taken at startup; 0 disables
}

// MPU9250Source reads motion samples from an MPU9250 over SPI.
type MPU9250Source struct {
	cfg      MPU9250Config
	imu      *mpu9250.MPU9250
	gyroBias imu.Vec3
	now      func() time.Time
}

// NewMPU9250Source returns an uninitialized source; call Init before Read.
func NewMPU9250Source(cfg MPU9250Config) *MPU9250Source {
	if cfg.InitRetries < 1 {
		cfg.InitRetries = 1
	}
	return &MPU9250Source{cfg: cfg, now: time.Now}
}

// Init performs the sensor handshake, retrying up to InitRetries times, then
// estimates the static gyro bias. The wearer must keep still while this runs.
func (s *MPU9250Source) Init(ctx context.Context) error {
	var err error
	for attempt := 1; attempt <= s.cfg.InitRetries; attempt++ {
		if err = s.open(); err == nil {
			break
		}
		log.Printf("sensors: MPU9250 init attempt %d/%d failed: %v", attempt, s.cfg.InitRetries, err)
		if attempt == s.cfg.InitRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.RetryDelay):
		}
	}
	if err != nil {
		return fmt.Errorf("MPU9250 not responding after %d attempts: %w", s.cfg.InitRetries, err)
	}

	if s.cfg.BiasSamples > 0 {
		bias, err := EstimateGyroBias(ctx, s.readGyro, s.cfg.BiasSamples, 5*time.Millisecond)
		if err != nil {
			return fmt.Errorf("MPU9250 gyro bias: %w", err)
		}
		s.gyroBias = bias
		log.Printf("sensors: MPU9250 gyro bias X=%.4f Y=%.4f Z=%.4f rad/s", bias.X, bias.Y, bias.Z)
	}
	return nil
}

func (s *MPU9250Source) open() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("periph host init: %w", err)
	}

	cs := gpioreg.ByName(s.cfg.CSPin)
	if cs == nil {
		return fmt.Errorf("CS pin %q not found", s.cfg.CSPin)
	}

	tr, err := mpu9250.NewSpiTransport(s.cfg.SPIDevice, cs)
	if err != nil {
		return fmt.Errorf("SPI transport (%s): %w", s.cfg.SPIDevice, err)
	}

	dev, err := mpu9250.New(tr)
	if err != nil {
		return fmt.Errorf("device creation: %w", err)
	}

	if err := dev.Init(); err != nil {
		return fmt.Errorf("initialization: %w", err)
	}

	if err := dev.SetAccelRange(s.cfg.Ranges.Accel); err != nil {
		return fmt.Errorf("set accel range: %w", err)
	}
	log.Printf("sensors: MPU9250 accelerometer range set to %d (±%dg)", s.cfg.Ranges.Accel, []int{2, 4, 8, 16}[s.cfg.Ranges.Accel&3])

	if err := dev.SetGyroRange(s.cfg.Ranges.Gyro); err != nil {
		return fmt.Errorf("set gyro range: %w", err)
	}
	log.Printf("sensors: MPU9250 gyroscope range set to %d (±%d°/s)", s.cfg.Ranges.Gyro, []int{250, 500, 1000, 2000}[s.cfg.Ranges.Gyro&3])

	testResult, err := dev.SelfTest()
	if err != nil {
		log.Printf("Warning: MPU9250 self-test failed: %v", err)
	} else {
		log.Printf("sensors: MPU9250 self-test passed:")
		log.Printf("  Accelerometer deviation: X: %.2f%%, Y: %.2f%%, Z: %.2f%%",
			testResult.AccelDeviation.X, testResult.AccelDeviation.Y, testResult.AccelDeviation.Z)
		log.Printf("  Gyroscope deviation: X: %.2f%%, Y: %.2f%%, Z: %.2f%%",
			testResult.GyroDeviation.X, testResult.GyroDeviation.Y, testResult.GyroDeviation.Z)
	}

	if err := dev.Calibrate(); err != nil {
		log.Printf("Warning: MPU9250 calibration failed: %v", err)
	}

	s.imu = dev
	return nil
}

// NextRaw reads accelerometer and gyroscope counts.
func (s *MPU9250Source) NextRaw() (imu.IMURaw, error) {
	if s.imu == nil {
		return imu.IMURaw{}, ErrNotInitialized
	}

	ax, err := s.imu.GetAccelerationX()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("MPU9250 accel X: %w", err)
	}
	ay, err := s.imu.GetAccelerationY()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("MPU9250 accel Y: %w", err)
	}
	az, err := s.imu.GetAccelerationZ()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("MPU9250 accel Z: %w", err)
	}

	gx, err := s.imu.GetRotationX()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("MPU9250 gyro X: %w", err)
	}
	gy, err := s.imu.GetRotationY()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("MPU9250 gyro Y: %w", err)
	}
	gz, err := s.imu.GetRotationZ()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("MPU9250 gyro Z: %w", err)
	}

	return imu.IMURaw{
		Source: "mpu9250",
		Ax:     ax,
		Ay:     ay,
		Az:     az,
		Gx:     gx,
		Gy:     gy,
		Gz:     gz,
	}, nil
}

func (s *MPU9250Source) readGyro() (imu.Vec3, error) {
	raw, err := s.NextRaw()
	if err != nil {
		return imu.Vec3{}, err
	}
	_, gyro := imu.ScaleRaw(raw, s.cfg.Ranges)
	return gyro, nil
}

// Read returns one bias-corrected sample in SI units.
func (s *MPU9250Source) Read() (imu.MotionSample, error) {
	raw, err := s.NextRaw()
	if err != nil {
		return imu.MotionSample{}, err
	}
	accel, gyro := imu.ScaleRaw(raw, s.cfg.Ranges)
	return imu.MotionSample{
		Accel: accel,
		Gyro:  gyro.Sub(s.gyroBias),
		Time:  s.now(),
	}, nil
}
