// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package notify

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ErrQueueFull is returned for a message dropped because the broker is not
// keeping up.
var ErrQueueFull = errors.New("MQTT publish queue full")

const dropLogEvery = 100

type outgoing struct {
	topic    string
	qos      byte
	retained bool
	payload  interface{}
}

// queuedToken is handed back by Queue.Publish; it is complete as soon as
// the message is queued (or dropped).
type queuedToken struct {
	err error
}

var closedCh = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

func (t queuedToken) Wait() bool { return true }
func (t queuedToken) WaitTimeout(time.Duration) bool { return true }
func (t queuedToken) Done() <-chan struct{} { return closedCh }
func (t queuedToken) Error() error { return t.err }

// Queue is a Publisher that never waits on the broker. Messages are handed
// to one goroutine that publishes them in order, QoS 1+ messages first.
// When a lane is full the new message is dropped.
type Queue struct {
	pub     Publisher
	urgent  chan outgoing // qos > 0: fall events, state changes
	bulk    chan outgoing // qos 0: poses
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once
	dropsMu sync.Mutex
	drops   int
}

// NewQueue starts a queue in front of pub holding up to size messages per lane.
func NewQueue(pub Publisher, size int) *Queue {
	q := &Queue{
		pub:    pub,
		urgent: make(chan outgoing, size),
		bulk:   make(chan outgoing, size),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

// Publish queues the message and returns a completed token. The token
// carries ErrQueueFull if the message was dropped.
func (q *Queue) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	lane := q.bulk
	if qos > 0 {
		lane = q.urgent
	}
	select {
	case lane <- outgoing{topic: topic, qos: qos, retained: retained, payload: payload}:
		return queuedToken{}
	default:
	}

	q.dropsMu.Lock()
	q.drops++
	n := q.drops
	q.dropsMu.Unlock()
	if n == 1 || n%dropLogEvery == 0 {
		log.Printf("notify: MQTT queue full, dropped %s (%d so far)", topic, n)
	}
	return queuedToken{err: fmt.Errorf("%w (%s)", ErrQueueFull, topic)}
}

// Drops returns how many messages were dropped.
func (q *Queue) Drops() int {
	q.dropsMu.Lock()
	defer q.dropsMu.Unlock()
	return q.drops
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		select {
		case m := <-q.urgent:
			q.send(m)
			continue
		default:
		}

		select {
		case m := <-q.urgent:
			q.send(m)
		case m := <-q.bulk:
			q.send(m)
		case <-q.quit:
			q.flush()
			return
		}
	}
}

// flush sends whatever is still queued, urgent lane first.
func (q *Queue) flush() {
	for _, lane := range []chan outgoing{q.urgent, q.bulk} {
		for {
			select {
			case m := <-lane:
				q.send(m)
				continue
			default:
			}
			break
		}
	}
}

func (q *Queue) send(m outgoing) {
	token := q.pub.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(publishTimeout) {
		log.Printf("notify: MQTT publish (%s): timed out", m.topic)
		return
	}
	if err := token.Error(); err != nil {
		log.Printf("notify: MQTT publish (%s): %v", m.topic, err)
	}
}

// Close stops the queue after sending what is already queued. Each pending
// message may still wait up to the publish timeout.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.quit) })
	<-q.done
}
