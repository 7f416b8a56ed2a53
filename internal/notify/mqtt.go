// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package notify

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/fall_monitor/internal/fall"
	"github.com/relabs-tech/fall_monitor/internal/gps"
	"github.com/relabs-tech/fall_monitor/internal/orientation"
)

// publishTimeout bounds how long the control loop waits for the broker.
const publishTimeout = 2 * time.Second

// Publisher is the subset of mqtt.Client used here.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Locator reports the last known position, if any.
type Locator interface {
	LastFix() (gps.Fix, bool)
}

// Connect dials the broker like every producer in this repo does.
func Connect(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect %s: %w", broker, token.Error())
	}
	return client, nil
}

func publishJSON(p Publisher, topic string, qos byte, retained bool, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal (%s): %w", topic, err)
	}
	token := p.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("MQTT publish (%s): timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT publish (%s): %w", topic, err)
	}
	return nil
}

// MQTT publishes fall events. Events use QoS 1 so a flaky link still
// delivers them.
type MQTT struct {
	pub     Publisher
	topic   string
	locator Locator
}

// NewMQTT returns a notifier publishing on topic. locator may be nil.
func NewMQTT(pub Publisher, topic string, locator Locator) *MQTT {
	return &MQTT{pub: pub, topic: topic, locator: locator}
}

func (m *MQTT) NotifyFall(at time.Time) error {
	msg := EventMessage{
		Type:   "fall",
		Time:   at,
		UnixMs: at.UnixMilli(),
	}
	if m.locator != nil {
		if fix, ok := m.locator.LastFix(); ok {
			msg.Location = &fix
		}
	}
	return publishJSON(m.pub, m.topic, 1, false, msg)
}

// StatePublisher mirrors classifier state and pose onto MQTT.
type StatePublisher struct {
	pub          Publisher
	stateTopic   string
	poseTopic    string
	poseInterval time.Duration
	lastPose     time.Time
}

// NewStatePublisher publishes every phase change on stateTopic (retained)
// and at most one pose per poseInterval on poseTopic.
func NewStatePublisher(pub Publisher, stateTopic, poseTopic string, poseInterval time.Duration) *StatePublisher {
	return &StatePublisher{
		pub:          pub,
		stateTopic:   stateTopic,
		poseTopic:    poseTopic,
		poseInterval: poseInterval,
	}
}

// PublishState announces the phase the classifier is in since at.
func (s *StatePublisher) PublishState(phase fall.Phase, at time.Time, pose orientation.Pose) error {
	return publishJSON(s.pub, s.stateTopic, 1, true, StateMessage{Phase: phase, Since: at, Pose: pose})
}

// PublishPose publishes pose unless one went out less than poseInterval ago.
func (s *StatePublisher) PublishPose(pose orientation.Pose, at time.Time) error {
	if s.poseTopic == "" {
		return nil
	}
	if !s.lastPose.IsZero() && at.Sub(s.lastPose) < s.poseInterval {
		return nil
	}
	s.lastPose = at
	return publishJSON(s.pub, s.poseTopic, 0, false, PoseMessage{Pose: pose, Time: at})
}
