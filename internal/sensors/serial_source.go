// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/fall_monitor/internal/imu"
)

// imuLinePrefix tags motion lines; the microcontroller also prints
// distance/level lines on the same port, which are ignored here.
const imuLinePrefix = "IMU,"

var (
	// ErrNoData means no complete IMU line arrived within the read timeout.
	ErrNoData = errors.New("no IMU line available")
	// ErrBadLine means an IMU line could not be parsed.
	ErrBadLine = errors.New("malformed IMU line")
)

// DefaultHandshakeTimeout bounds how long Init waits for the first valid line.
const DefaultHandshakeTimeout = 5 * time.Second

// SerialSource reads "IMU,ax,ay,az,gx,gy,gz" lines (m/s², rad/s) from a
// microcontroller. It also accepts writes so notifiers can talk back on the
// same link.
type SerialSource struct {
	port             io.ReadWriteCloser
	reader           *bufio.Reader
	partial          string
	now              func() time.Time
	HandshakeTimeout time.Duration
}

// OpenSerialSource opens the serial port. Reads time out after 100ms so a
// silent microcontroller cannot stall the control loop.
func OpenSerialSource(portName string, baud int) (*SerialSource, error) {
	serialOpts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 100,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return nil, fmt.Errorf("serial open %s: %w", portName, err)
	}
	return NewSerialSource(port), nil
}

// NewSerialSource wraps an already open port.
func NewSerialSource(port io.ReadWriteCloser) *SerialSource {
	return &SerialSource{
		port:             port,
		reader:           bufio.NewReader(port),
		now:              time.Now,
		HandshakeTimeout: DefaultHandshakeTimeout,
	}
}

// Init waits until the microcontroller sends a parseable IMU line.
func (s *SerialSource) Init(ctx context.Context) error {
	deadline := time.Now().Add(s.HandshakeTimeout)
	for {
		_, err := s.Read()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !errors.Is(err, ErrNoData) && !errors.Is(err, ErrBadLine) {
			return fmt.Errorf("serial handshake: %w", err)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("serial handshake: no IMU data within %v: %w", s.HandshakeTimeout, err)
		}
	}
}

// Read returns the next IMU line as a sample, skipping other lines.
func (s *SerialSource) Read() (imu.MotionSample, error) {
	for {
		line, err := s.reader.ReadString('\n')
		s.partial += line
		if err != nil {
			// keep the partial line for the next call
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrNoProgress) {
				return imu.MotionSample{}, ErrNoData
			}
			return imu.MotionSample{}, fmt.Errorf("serial read: %w", err)
		}

		full := strings.TrimSpace(s.partial)
		s.partial = ""
		if !strings.HasPrefix(full, imuLinePrefix) {
			continue
		}

		accel, gyro, err := ParseIMULine(full)
		if err != nil {
			return imu.MotionSample{}, err
		}
		return imu.MotionSample{Accel: accel, Gyro: gyro, Time: s.now()}, nil
	}
}

// ParseIMULine parses "IMU,ax,ay,az,gx,gy,gz".
func ParseIMULine(line string) (accel, gyro imu.Vec3, err error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 7 || fields[0] != strings.TrimSuffix(imuLinePrefix, ",") {
		return accel, gyro, fmt.Errorf("%w: %q", ErrBadLine, line)
	}

	var v [6]float64
	for i, f := range fields[1:] {
		v[i], err = strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return accel, gyro, fmt.Errorf("%w: field %d of %q: %v", ErrBadLine, i+1, line, err)
		}
	}

	accel = imu.Vec3{X: v[0], Y: v[1], Z: v[2]}
	gyro = imu.Vec3{X: v[3], Y: v[4], Z: v[5]}
	return accel, gyro, nil
}

// Write sends raw bytes to the microcontroller.
func (s *SerialSource) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

// Close closes the port.
func (s *SerialSource) Close() error {
	return s.port.Close()
}
