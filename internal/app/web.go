// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/fall_monitor/internal/config"
	"github.com/relabs-tech/fall_monitor/internal/notify"
)

const (
	wsSendBuffer   = 16
	wsWriteTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSUpdate is pushed to every dashboard websocket. Exactly one of the
// payload fields is set, matching Type.
type WSUpdate struct {
	Type  string               `json:"type"` // state, event, pose
	State *notify.StateMessage `json:"state,omitempty"`
	Event *notify.EventMessage `json:"event,omitempty"`
	Pose  *notify.PoseMessage  `json:"pose,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// dashboard keeps the latest MQTT messages and fans them out to websockets.
type dashboard struct {
	mu      sync.RWMutex
	state   *notify.StateMessage
	event   *notify.EventMessage
	pose    *notify.PoseMessage
	clients map[*wsClient]struct{}
}

func newDashboard() *dashboard {
	return &dashboard{clients: make(map[*wsClient]struct{})}
}

func (d *dashboard) setState(st notify.StateMessage) {
	d.mu.Lock()
	d.state = &st
	d.mu.Unlock()
	d.broadcast(WSUpdate{Type: "state", State: &st})
}

func (d *dashboard) setEvent(ev notify.EventMessage) {
	d.mu.Lock()
	d.event = &ev
	d.mu.Unlock()
	d.broadcast(WSUpdate{Type: "event", Event: &ev})
}

func (d *dashboard) setPose(p notify.PoseMessage) {
	d.mu.Lock()
	d.pose = &p
	d.mu.Unlock()
	d.broadcast(WSUpdate{Type: "pose", Pose: &p})
}

// broadcast queues u for every client. A client that cannot keep up misses
// the update rather than stalling the MQTT callback.
func (d *dashboard) broadcast(u WSUpdate) {
	payload, err := json.Marshal(u)
	if err != nil {
		log.Printf("web: json marshal error (%s): %v", u.Type, err)
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	for c := range d.clients {
		select {
		case c.send <- payload:
		default:
			log.Printf("web: dropping %s update for slow client %s", u.Type, c.conn.RemoteAddr())
		}
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

func (d *dashboard) handleState(w http.ResponseWriter, r *http.Request) {
	d.mu.RLock()
	st := d.state
	d.mu.RUnlock()

	if st == nil {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, st)
}

func (d *dashboard) handleEvent(w http.ResponseWriter, r *http.Request) {
	d.mu.RLock()
	ev := d.event
	d.mu.RUnlock()

	if ev == nil {
		http.Error(w, "no fall detected yet", http.StatusNotFound)
		return
	}
	writeJSON(w, ev)
}

// handleWS sends the current state and last event, then streams updates
// until the client goes away.
func (d *dashboard) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}

	d.mu.Lock()
	var initial []WSUpdate
	if d.state != nil {
		initial = append(initial, WSUpdate{Type: "state", State: d.state})
	}
	if d.event != nil {
		initial = append(initial, WSUpdate{Type: "event", Event: d.event})
	}
	for _, u := range initial {
		if payload, err := json.Marshal(u); err == nil {
			c.send <- payload
		}
	}
	d.clients[c] = struct{}{}
	d.mu.Unlock()

	go c.writeLoop()

	// The dashboard never sends anything meaningful; reading detects close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	d.mu.Lock()
	delete(d.clients, c)
	close(c.send)
	d.mu.Unlock()
}

func (c *wsClient) writeLoop() {
	defer c.conn.Close()
	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("web: websocket write error: %v", err)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (d *dashboard) routes(staticDir string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/state", d.handleState)
	mux.HandleFunc("/api/event", d.handleEvent)
	mux.HandleFunc("/ws", d.handleWS)
	if staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}
	return mux
}

// RunWeb serves the dashboard: latest state and fall event as JSON, a
// websocket stream of updates and static files from ./web.
func RunWeb() error {
	cfg := config.Get()
	d := newDashboard()

	client, err := notify.Connect(cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	if err := subscribeJSON(client, "web", cfg.TopicFallState, d.setState); err != nil {
		return err
	}
	if err := subscribeJSON(client, "web", cfg.TopicFallEvent, d.setEvent); err != nil {
		return err
	}
	if cfg.TopicPose != "" {
		if err := subscribeJSON(client, "web", cfg.TopicPose, d.setPose); err != nil {
			return err
		}
	}

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web: server listening on %s", addr)
	return http.ListenAndServe(addr, d.routes("web"))
}
