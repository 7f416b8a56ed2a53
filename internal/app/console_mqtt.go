// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/fall_monitor/internal/config"
	"github.com/relabs-tech/fall_monitor/internal/notify"
)

func formatEvent(ev notify.EventMessage) string {
	s := fmt.Sprintf("[FALL ] %s", ev.Time.Format(time.RFC3339))
	if ev.Location != nil {
		s += fmt.Sprintf("  lat=%.6f lon=%.6f alt=%.0fm", ev.Location.Latitude, ev.Location.Longitude, ev.Location.AltitudeM)
	}
	return s
}

func formatState(st notify.StateMessage) string {
	return fmt.Sprintf("[STATE] %-15s since %s  ROLL=%6.2f  PITCH=%6.2f",
		st.Phase, st.Since.Format(time.RFC3339), st.Pose.Roll, st.Pose.Pitch)
}

func formatPose(p notify.PoseMessage) string {
	return fmt.Sprintf("[POSE ] ROLL=%6.2f  PITCH=%6.2f", p.Roll, p.Pitch)
}

// subscribeJSON subscribes to topic and decodes every payload into a fresh T.
func subscribeJSON[T any](client mqtt.Client, component, topic string, handle func(T)) error {
	token := client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		var v T
		if err := json.Unmarshal(msg.Payload(), &v); err != nil {
			log.Printf("%s: %s unmarshal error: %v", component, topic, err)
			return
		}
		handle(v)
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	log.Printf("%s: subscribed to %s", component, topic)
	return nil
}

// RunConsoleMQTT prints fall events, state changes and poses until Ctrl+C.
func RunConsoleMQTT(showPose bool) error {
	cfg := config.Get()

	client, err := notify.Connect(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	if err := subscribeJSON(client, "console", cfg.TopicFallEvent, func(ev notify.EventMessage) {
		fmt.Println(formatEvent(ev))
	}); err != nil {
		return err
	}

	if err := subscribeJSON(client, "console", cfg.TopicFallState, func(st notify.StateMessage) {
		fmt.Println(formatState(st))
	}); err != nil {
		return err
	}

	if showPose {
		if err := subscribeJSON(client, "console", cfg.TopicPose, func(p notify.PoseMessage) {
			fmt.Println(formatPose(p))
		}); err != nil {
			return err
		}
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
