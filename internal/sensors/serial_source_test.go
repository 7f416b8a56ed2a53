// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/fall_monitor/internal/imu"
)

// mockSerialPort implements io.ReadWriteCloser for testing.
type mockSerialPort struct {
	ReadData    []byte
	WrittenData []byte
	ReadError   error
	Closed      bool
}

func (m *mockSerialPort) Read(p []byte) (int, error) {
	if m.ReadError != nil {
		return 0, m.ReadError
	}
	if len(m.ReadData) == 0 {
		return 0, io.EOF
	}
	n := copy(p, m.ReadData)
	m.ReadData = m.ReadData[n:]
	return n, nil
}

func (m *mockSerialPort) Write(p []byte) (int, error) {
	m.WrittenData = append(m.WrittenData, p...)
	return len(p), nil
}

func (m *mockSerialPort) Close() error {
	m.Closed = true
	return nil
}

func fixedNow() time.Time {
	return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
}

func newTestSerialSource(data string) (*SerialSource, *mockSerialPort) {
	port := &mockSerialPort{ReadData: []byte(data)}
	src := NewSerialSource(port)
	src.now = fixedNow
	return src, port
}

func TestParseIMULine(t *testing.T) {
	accel, gyro, err := ParseIMULine("IMU,0.1,-0.2,9.81,0.01,0.02,-0.03")
	require.NoError(t, err)
	assert.Equal(t, imu.Vec3{X: 0.1, Y: -0.2, Z: 9.81}, accel)
	assert.Equal(t, imu.Vec3{X: 0.01, Y: 0.02, Z: -0.03}, gyro)

	bad := []string{
		"",
		"IMU,1,2,3",
		"IMU,1,2,3,4,5,x",
		"ACC,1,2,3,4,5,6",
		"IMU,1,2,3,4,5,6,7",
	}
	for _, line := range bad {
		_, _, err := ParseIMULine(line)
		assert.True(t, errors.Is(err, ErrBadLine), "line %q", line)
	}
}

func TestSerialSourceRead(t *testing.T) {
	src, _ := newTestSerialSource(
		"120,80,300,1,2,3\r\n" + // distance/level line from the original firmware
			"----\n" +
			"IMU,0,0,9.81,0,0,0\r\n" +
			"IMU,1,2,3,4,5\n" +
			"IMU,0,9.81,0,0.5,0,0\n")

	s, err := src.Read()
	require.NoError(t, err)
	assert.Equal(t, imu.Vec3{Z: 9.81}, s.Accel)
	assert.Equal(t, fixedNow(), s.Time)
	assert.True(t, s.Valid())

	_, err = src.Read()
	assert.True(t, errors.Is(err, ErrBadLine))

	s, err = src.Read()
	require.NoError(t, err)
	assert.Equal(t, imu.Vec3{X: 0.5}, s.Gyro)

	_, err = src.Read()
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestSerialSourceKeepsPartialLine(t *testing.T) {
	src, port := newTestSerialSource("IMU,0,0,9.")

	_, err := src.Read()
	require.True(t, errors.Is(err, ErrNoData))

	port.ReadData = []byte("81,0,0,0\n")
	s, err := src.Read()
	require.NoError(t, err)
	assert.Equal(t, 9.81, s.Accel.Z)
}

func TestSerialSourceReadError(t *testing.T) {
	src, port := newTestSerialSource("")
	port.ReadError = errors.New("device unplugged")

	_, err := src.Read()
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoData))
}

func TestSerialSourceInit(t *testing.T) {
	t.Run("handshake succeeds on first IMU line", func(t *testing.T) {
		src, _ := newTestSerialSource("booting...\nIMU,0,0,9.81,0,0,0\n")
		require.NoError(t, src.Init(context.Background()))
	})

	t.Run("handshake times out", func(t *testing.T) {
		src, _ := newTestSerialSource("booting...\n")
		src.HandshakeTimeout = 20 * time.Millisecond
		err := src.Init(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNoData))
	})

	t.Run("port failure is fatal", func(t *testing.T) {
		src, port := newTestSerialSource("")
		port.ReadError = errors.New("no such device")
		assert.Error(t, src.Init(context.Background()))
	})

	t.Run("cancelled context", func(t *testing.T) {
		src, _ := newTestSerialSource("")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, src.Init(ctx), context.Canceled)
	})
}

func TestSerialSourceWriteAndClose(t *testing.T) {
	src, port := newTestSerialSource("")

	n, err := src.Write([]byte("FALL,1\n"))
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, "FALL,1\n", string(port.WrittenData))

	require.NoError(t, src.Close())
	assert.True(t, port.Closed)
}
