// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/relabs-tech/fall_monitor/internal/fall"
	"github.com/relabs-tech/fall_monitor/internal/imu"
	"github.com/relabs-tech/fall_monitor/internal/sensors"
)

// Sensor sources.
const (
	SourceMPU9250 = "mpu9250"
	SourceSerial  = "serial"
	SourceMock    = "mock"
)

// Config holds all application configuration values.
type Config struct {
	// Sensor
	SensorSource string
	MockScenario string

	// Fall detection
	SampleRateHz           float64
	ImpactThresholdG       float64
	AngleThresholdDeg      float64
	MotionThresholdRadPerS float64
	InactivityTimeMS       int
	ImpactTimeoutMS        int

	// IMU Hardware
	IMUSPIDevice string
	IMUCSPin     string

	// IMU Sensor Ranges
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte
	// Gyroscope: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	IMUGyroRange byte

	// IMU startup
	IMUInitRetries    int
	IMUInitRetryDelay int // milliseconds
	GyroBiasSamples   int

	// Microcontroller serial link
	SerialPort     string
	SerialBaudRate int
	SerialNotify   bool

	// GPS (optional)
	GPSSerialPort string
	GPSBaudRate   int

	// MQTT
	MQTTBroker          string
	MQTTClientIDMonitor string
	MQTTClientIDConsole string
	MQTTClientIDWeb     string
	MQTTClientIDDisplay string

	// Topics
	TopicFallEvent string
	TopicFallState string
	TopicPose      string

	// Timing
	PosePublishInterval int // milliseconds

	// Web Server
	WebServerPort int

	// Display
	DisplayI2CBus         string
	DisplayUpdateInterval int // milliseconds
}

// Default returns the configuration used for keys missing from the file.
func Default() *Config {
	th := fall.DefaultThresholds()
	return &Config{
		SensorSource: SourceMock,
		MockScenario: sensors.ScenarioFall,

		SampleRateHz:           th.SampleRateHz,
		ImpactThresholdG:       th.ImpactThresholdG,
		AngleThresholdDeg:      th.AngleThresholdDeg,
		MotionThresholdRadPerS: th.MotionThresholdRadPerS,
		InactivityTimeMS:       int(th.InactivityTime / time.Millisecond),
		ImpactTimeoutMS:        int(th.ImpactTimeout / time.Millisecond),

		IMUSPIDevice:  "/dev/spidev6.0",
		IMUCSPin:      "18",
		IMUAccelRange: 3,
		IMUGyroRange:  1,

		IMUInitRetries:    5,
		IMUInitRetryDelay: 500,
		GyroBiasSamples:   200,

		SerialPort:     "/dev/ttyACM0",
		SerialBaudRate: 115200,

		GPSBaudRate: 9600,

		MQTTBroker:          "tcp://localhost:1883",
		MQTTClientIDMonitor: "fall-monitor",
		MQTTClientIDConsole: "fall-console",
		MQTTClientIDWeb:     "fall-web",
		MQTTClientIDDisplay: "fall-display",

		TopicFallEvent: "fall/event",
		TopicFallState: "fall/state",
		TopicPose:      "fall/pose",

		PosePublishInterval: 200,

		WebServerPort: 8080,

		DisplayUpdateInterval: 250,
	}
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported so other packages cannot modify it directly.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access.
//
// Only the cmd/ executables use the global; packages take explicit values.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of Default().
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseInt(key, value string, min int) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < min {
		return 0, fmt.Errorf("%s must be >= %d, got %d", key, min, v)
	}
	return v, nil
}

func parseFloat(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

func parseRange(key, value, help string) (byte, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < 0 || v > 3 {
		return 0, fmt.Errorf("%s must be 0-3 (%s), got %d", key, help, v)
	}
	return byte(v), nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// Sensor
	case "SENSOR_SOURCE":
		switch value {
		case SourceMPU9250, SourceSerial, SourceMock:
			c.SensorSource = value
		default:
			return fmt.Errorf("SENSOR_SOURCE must be %s, %s or %s, got %q", SourceMPU9250, SourceSerial, SourceMock, value)
		}
	case "MOCK_SCENARIO":
		c.MockScenario = value

	// Fall detection
	case "SAMPLE_RATE_HZ":
		c.SampleRateHz, err = parseFloat(key, value)
	case "IMPACT_THRESHOLD_G":
		c.ImpactThresholdG, err = parseFloat(key, value)
	case "ANGLE_THRESHOLD_DEG":
		c.AngleThresholdDeg, err = parseFloat(key, value)
	case "MOTION_THRESHOLD_RAD_S":
		c.MotionThresholdRadPerS, err = parseFloat(key, value)
	case "INACTIVITY_TIME_MS":
		c.InactivityTimeMS, err = parseInt(key, value, 0)
	case "IMPACT_TIMEOUT_MS":
		c.ImpactTimeoutMS, err = parseInt(key, value, 0)

	// IMU Hardware
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "IMU_ACCEL_RANGE":
		c.IMUAccelRange, err = parseRange(key, value, "0=±2g, 1=±4g, 2=±8g, 3=±16g")
	case "IMU_GYRO_RANGE":
		c.IMUGyroRange, err = parseRange(key, value, "0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s")
	case "IMU_INIT_RETRIES":
		c.IMUInitRetries, err = parseInt(key, value, 1)
	case "IMU_INIT_RETRY_DELAY":
		c.IMUInitRetryDelay, err = parseInt(key, value, 0)
	case "GYRO_BIAS_SAMPLES":
		c.GyroBiasSamples, err = parseInt(key, value, 0)

	// Microcontroller serial link
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		c.SerialBaudRate, err = parseInt(key, value, 1)
	case "SERIAL_NOTIFY":
		c.SerialNotify, err = strconv.ParseBool(value)
		if err != nil {
			err = fmt.Errorf("invalid SERIAL_NOTIFY %q: %w", value, err)
		}

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		c.GPSBaudRate, err = parseInt(key, value, 1)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_MONITOR":
		c.MQTTClientIDMonitor = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_FALL_EVENT":
		c.TopicFallEvent = value
	case "TOPIC_FALL_STATE":
		c.TopicFallState = value
	case "TOPIC_POSE":
		c.TopicPose = value

	// Timing
	case "POSE_PUBLISH_INTERVAL":
		c.PosePublishInterval, err = parseInt(key, value, 0)

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value, 1)

	// Display
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = parseInt(key, value, 1)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks required fields and the fall detection thresholds.
func (c *Config) validate() error {
	if err := c.Thresholds().Validate(); err != nil {
		return err
	}
	switch c.SensorSource {
	case SourceMPU9250:
		if c.IMUSPIDevice == "" {
			return fmt.Errorf("IMU_SPI_DEVICE is required")
		}
		if c.IMUCSPin == "" {
			return fmt.Errorf("IMU_CS_PIN is required")
		}
	case SourceSerial:
		if c.SerialPort == "" {
			return fmt.Errorf("SERIAL_PORT is required")
		}
	case SourceMock:
		if _, err := sensors.NewMockSource(c.MockScenario); err != nil {
			return fmt.Errorf("MOCK_SCENARIO: %w", err)
		}
	}
	if c.SerialNotify && c.SensorSource != SourceSerial {
		return fmt.Errorf("SERIAL_NOTIFY requires SENSOR_SOURCE=%s", SourceSerial)
	}
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	return nil
}

// Thresholds converts the fall detection keys for the classifier.
func (c *Config) Thresholds() fall.Thresholds {
	return fall.Thresholds{
		SampleRateHz:           c.SampleRateHz,
		ImpactThresholdG:       c.ImpactThresholdG,
		AngleThresholdDeg:      c.AngleThresholdDeg,
		MotionThresholdRadPerS: c.MotionThresholdRadPerS,
		InactivityTime:         time.Duration(c.InactivityTimeMS) * time.Millisecond,
		ImpactTimeout:          time.Duration(c.ImpactTimeoutMS) * time.Millisecond,
	}
}

// MPU9250 returns the sensor settings for sensors.NewMPU9250Source.
func (c *Config) MPU9250() sensors.MPU9250Config {
	return sensors.MPU9250Config{
		SPIDevice:   c.IMUSPIDevice,
		CSPin:       c.IMUCSPin,
		Ranges:      imu.Ranges{Accel: c.IMUAccelRange, Gyro: c.IMUGyroRange},
		InitRetries: c.IMUInitRetries,
		RetryDelay:  time.Duration(c.IMUInitRetryDelay) * time.Millisecond,
		BiasSamples: c.GyroBiasSamples,
	}
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
