// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package notify

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/fall_monitor/internal/fall"
	"github.com/relabs-tech/fall_monitor/internal/gps"
	"github.com/relabs-tech/fall_monitor/internal/orientation"
)

// fakeToken completes immediately unless pending is set.
type fakeToken struct {
	err     error
	pending bool
}

func (t *fakeToken) Wait() bool { return !t.pending }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.pending }
func (t *fakeToken) Error() error { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if !t.pending {
		close(ch)
	}
	return ch
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakePublisher struct {
	msgs    []published
	err     error
	pending bool
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.msgs = append(p.msgs, published{topic, qos, retained, payload.([]byte)})
	return &fakeToken{err: p.err, pending: p.pending}
}

type fixedLocator struct {
	fix gps.Fix
	ok  bool
}

func (l fixedLocator) LastFix() (gps.Fix, bool) { return l.fix, l.ok }

var fallAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMultiNotifiesEveryone(t *testing.T) {
	errA := errors.New("a down")
	errB := errors.New("b down")
	var calls []string
	m := Multi{
		Func(func(time.Time) error { calls = append(calls, "a"); return errA }),
		Func(func(time.Time) error { calls = append(calls, "ok"); return nil }),
		Func(func(time.Time) error { calls = append(calls, "b"); return errB }),
	}

	err := m.NotifyFall(fallAt)
	assert.Equal(t, []string{"a", "ok", "b"}, calls)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)

	assert.NoError(t, Multi{Log{}}.NotifyFall(fallAt))
}

func TestSerialWritesFallLine(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewSerial(&buf).NotifyFall(fallAt))
	assert.Equal(t, "FALL,1772366400000\n", buf.String())
}

func TestMQTTNotifyFall(t *testing.T) {
	t.Run("without location", func(t *testing.T) {
		pub := &fakePublisher{}
		require.NoError(t, NewMQTT(pub, "fall/event", nil).NotifyFall(fallAt))
		require.Len(t, pub.msgs, 1)
		msg := pub.msgs[0]
		assert.Equal(t, "fall/event", msg.topic)
		assert.Equal(t, byte(1), msg.qos)
		assert.False(t, msg.retained)

		var ev EventMessage
		require.NoError(t, json.Unmarshal(msg.payload, &ev))
		assert.Equal(t, "fall", ev.Type)
		assert.Equal(t, fallAt.UnixMilli(), ev.UnixMs)
		assert.Nil(t, ev.Location)
	})

	t.Run("with location", func(t *testing.T) {
		pub := &fakePublisher{}
		loc := fixedLocator{fix: gps.Fix{Latitude: 52.52, Longitude: 13.405}, ok: true}
		require.NoError(t, NewMQTT(pub, "fall/event", loc).NotifyFall(fallAt))

		var ev EventMessage
		require.NoError(t, json.Unmarshal(pub.msgs[0].payload, &ev))
		require.NotNil(t, ev.Location)
		assert.InDelta(t, 52.52, ev.Location.Latitude, 1e-9)
		assert.InDelta(t, 13.405, ev.Location.Longitude, 1e-9)
	})

	t.Run("no fix yet", func(t *testing.T) {
		pub := &fakePublisher{}
		require.NoError(t, NewMQTT(pub, "fall/event", fixedLocator{}).NotifyFall(fallAt))
		assert.NotContains(t, string(pub.msgs[0].payload), "location")
	})

	t.Run("broker error", func(t *testing.T) {
		brokerErr := errors.New("not connected")
		pub := &fakePublisher{err: brokerErr}
		err := NewMQTT(pub, "fall/event", nil).NotifyFall(fallAt)
		assert.ErrorIs(t, err, brokerErr)
	})

	t.Run("timeout", func(t *testing.T) {
		pub := &fakePublisher{pending: true}
		err := NewMQTT(pub, "fall/event", nil).NotifyFall(fallAt)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timed out")
	})
}

func TestStatePublisher(t *testing.T) {
	pub := &fakePublisher{}
	sp := NewStatePublisher(pub, "fall/state", "fall/pose", 200*time.Millisecond)

	pose := orientation.Pose{Roll: 1, Pitch: 80}
	require.NoError(t, sp.PublishState(fall.PhasePostFall, fallAt, pose))
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "fall/state", pub.msgs[0].topic)
	assert.True(t, pub.msgs[0].retained)

	var st StateMessage
	require.NoError(t, json.Unmarshal(pub.msgs[0].payload, &st))
	assert.Equal(t, fall.PhasePostFall, st.Phase)
	assert.True(t, fallAt.Equal(st.Since))
	assert.Equal(t, pose, st.Pose)
	assert.Contains(t, string(pub.msgs[0].payload), `"phase":"post_fall"`)

	// Poses are throttled to one per interval.
	pub.msgs = nil
	for i := 0; i < 50; i++ {
		at := fallAt.Add(time.Duration(i) * 10 * time.Millisecond)
		require.NoError(t, sp.PublishPose(pose, at))
	}
	require.Len(t, pub.msgs, 3) // 0, 200, 400 ms
	for _, m := range pub.msgs {
		assert.Equal(t, "fall/pose", m.topic)
		assert.Equal(t, byte(0), m.qos)
	}

	var pm PoseMessage
	require.NoError(t, json.Unmarshal(pub.msgs[2].payload, &pm))
	assert.Equal(t, pose, pm.Pose)
	assert.True(t, fallAt.Add(400*time.Millisecond).Equal(pm.Time))
}

func TestStatePublisherWithoutPoseTopic(t *testing.T) {
	pub := &fakePublisher{}
	sp := NewStatePublisher(pub, "fall/state", "", time.Second)
	require.NoError(t, sp.PublishPose(orientation.Pose{}, fallAt))
	assert.Empty(t, pub.msgs)
}
