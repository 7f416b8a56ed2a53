// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/relabs-tech/fall_monitor/internal/clock"
	"github.com/relabs-tech/fall_monitor/internal/config"
	"github.com/relabs-tech/fall_monitor/internal/fall"
	"github.com/relabs-tech/fall_monitor/internal/gps"
	"github.com/relabs-tech/fall_monitor/internal/imu"
	"github.com/relabs-tech/fall_monitor/internal/monitor"
	"github.com/relabs-tech/fall_monitor/internal/notify"
	"github.com/relabs-tech/fall_monitor/internal/orientation"
	"github.com/relabs-tech/fall_monitor/internal/sensors"
)

// openSource returns the configured motion source. closer is non-nil when
// the source holds a port that must be released.
func openSource(cfg *config.Config) (imu.MotionSource, io.Closer, error) {
	switch cfg.SensorSource {
	case config.SourceMPU9250:
		log.Printf("monitor: using MPU-9250 on %s (CS pin %s)", cfg.IMUSPIDevice, cfg.IMUCSPin)
		return sensors.NewMPU9250Source(cfg.MPU9250()), nil, nil
	case config.SourceSerial:
		src, err := sensors.OpenSerialSource(cfg.SerialPort, cfg.SerialBaudRate)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("monitor: using microcontroller on %s at %d baud", cfg.SerialPort, cfg.SerialBaudRate)
		return src, src, nil
	case config.SourceMock:
		src, err := sensors.NewMockSource(cfg.MockScenario)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("monitor: using mock source (%s scenario)", cfg.MockScenario)
		return src, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown sensor source %q", cfg.SensorSource)
	}
}

// publishQueueSize is per lane; at the default pose interval it holds a
// few seconds of broker outage.
const publishQueueSize = 32

// stateObserver mirrors every transition and a throttled pose stream onto
// MQTT. sp must publish through a notify.Queue so the loop never waits on
// the broker. Publish errors are logged and never stop the loop.
func stateObserver(sp *notify.StatePublisher) monitor.Observer {
	return monitor.ObserverFunc(func(step fall.Step, pose orientation.Pose) {
		if step.Changed() {
			if err := sp.PublishState(step.To, step.At, pose); err != nil {
				log.Printf("monitor: state publish error: %v", err)
			}
		}
		// dropped poses are counted and logged by the queue
		if err := sp.PublishPose(pose, step.At); err != nil && !errors.Is(err, notify.ErrQueueFull) {
			log.Printf("monitor: pose publish error: %v", err)
		}
	})
}

// RunFallMonitor runs the fall detection loop with the configured sensor,
// notifiers and MQTT state publishing until ctx is cancelled.
func RunFallMonitor(ctx context.Context) error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("config not initialized")
	}

	cls, err := fall.NewClassifier(cfg.Thresholds())
	if err != nil {
		return err
	}

	src, closer, err := openSource(cfg)
	if err != nil {
		return fmt.Errorf("open sensor: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	notifiers := notify.Multi{notify.Log{}}

	// Optional GPS receiver for the event location
	var tracker *gps.Tracker
	if cfg.GPSSerialPort != "" {
		port, err := gps.OpenPort(cfg.GPSSerialPort, cfg.GPSBaudRate)
		if err != nil {
			log.Printf("monitor: GPS unavailable, events carry no location: %v", err)
		} else {
			tracker = gps.NewTracker()
			go func() {
				if err := tracker.Run(ctx, port); err != nil {
					log.Printf("monitor: GPS reader stopped: %v", err)
				}
			}()
			log.Printf("monitor: GPS serial port opened on %s at %d baud", cfg.GPSSerialPort, cfg.GPSBaudRate)
		}
	}

	// A missing broker must not stop detection; falls are still logged.
	var observer monitor.Observer
	client, err := notify.Connect(cfg.MQTTBroker, cfg.MQTTClientIDMonitor)
	if err != nil {
		log.Printf("monitor: WARNING %v, falls will only be logged", err)
	} else {
		defer client.Disconnect(250)
		log.Printf("monitor: connected to MQTT broker at %s", cfg.MQTTBroker)

		queue := notify.NewQueue(client, publishQueueSize)
		defer queue.Close()

		var locator notify.Locator
		if tracker != nil {
			locator = tracker
		}
		notifiers = append(notifiers, notify.NewMQTT(queue, cfg.TopicFallEvent, locator))

		sp := notify.NewStatePublisher(queue, cfg.TopicFallState, cfg.TopicPose,
			time.Duration(cfg.PosePublishInterval)*time.Millisecond)
		if err := sp.PublishState(cls.Phase(), time.Now(), orientation.Pose{}); err != nil {
			log.Printf("monitor: state publish error: %v", err)
		}
		observer = stateObserver(sp)
	}

	if cfg.SerialNotify {
		if w, ok := src.(io.Writer); ok {
			notifiers = append(notifiers, notify.NewSerial(w))
			log.Printf("monitor: falls are also sent to the microcontroller on %s", cfg.SerialPort)
		}
	}

	m := monitor.New(src, orientation.NewEstimator(), cls, notifiers, observer)

	th := cls.Thresholds()
	log.Printf("monitor: %.0f Hz, impact > %.2fg, angle > %.0f°, still < %.2f rad/s for %v, window %v",
		th.SampleRateHz, th.ImpactThresholdG, th.AngleThresholdDeg,
		th.MotionThresholdRadPerS, th.InactivityTime, th.ImpactTimeout)

	err = m.Run(ctx, clock.NewRateTicker(th.SampleRateHz))
	stats := m.Stats()
	log.Printf("monitor: stopped after %d ticks (%d skipped), %d falls", stats.Ticks, stats.Skipped, stats.Falls)
	return err
}
