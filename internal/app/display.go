// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/fall_monitor/internal/config"
	"github.com/relabs-tech/fall_monitor/internal/fall"
	"github.com/relabs-tech/fall_monitor/internal/notify"
)

const (
	displayWidth  = 128
	displayHeight = 64
)

// DisplayData holds the latest data for display
type DisplayData struct {
	mu sync.RWMutex

	state     notify.StateMessage
	haveState bool

	pose     notify.PoseMessage
	havePose bool

	lastFall     time.Time
	haveLastFall bool
}

func (d *DisplayData) snapshot() DisplayData {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return DisplayData{
		state:        d.state,
		haveState:    d.haveState,
		pose:         d.pose,
		havePose:     d.havePose,
		lastFall:     d.lastFall,
		haveLastFall: d.haveLastFall,
	}
}

func phaseLabel(p fall.Phase) string {
	switch p {
	case fall.PhaseNormal:
		return "OK"
	case fall.PhaseImpactDetected:
		return "IMPACT?"
	case fall.PhasePostFall:
		return "FALL DETECTED"
	default:
		return "UNKNOWN"
	}
}

// displayLines returns the text rows shown for data.
func displayLines(data *DisplayData) []string {
	if !data.haveState {
		return []string{"Fall Monitor", "Waiting..."}
	}

	lines := []string{
		phaseLabel(data.state.Phase),
		"since " + data.state.Since.Local().Format("15:04:05"),
	}

	pose := data.state.Pose
	if data.havePose && data.pose.Time.After(data.state.Since) {
		pose = data.pose.Pose
	}
	lines = append(lines, fmt.Sprintf("P:%6.1f R:%6.1f", pose.Pitch, pose.Roll))

	if data.haveLastFall {
		lines = append(lines, "last "+data.lastFall.Local().Format("Jan 2 15:04"))
	}
	return lines
}

// renderStatus draws the status screen. A confirmed fall is drawn inverted
// so it is visible from a distance.
func renderStatus(data *DisplayData) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))

	fg, bg := image1bit.On, image1bit.Off
	if data.haveState && data.state.Phase == fall.PhasePostFall {
		fg, bg = bg, fg
	}

	// Blank image
	fill := byte(0)
	if bg == image1bit.On {
		fill = 0xFF
	}
	for i := range img.Pix {
		img.Pix[i] = fill
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{fg},
		Face: basicfont.Face7x13,
	}
	for i, line := range displayLines(data) {
		drawer.Dot = fixed.P(0, 13*(i+1))
		drawer.DrawBytes([]byte(line))
	}
	return img
}

// RunDisplay shows the fall monitor state on an SSD1306 OLED.
func RunDisplay() error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized on I2C bus %q", cfg.DisplayI2CBus)

	data := &DisplayData{}
	if err := drawStatus(dev, data); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	client, err := notify.Connect(cfg.MQTTBroker, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	if err := subscribeJSON(client, "display", cfg.TopicFallState, func(st notify.StateMessage) {
		data.mu.Lock()
		data.state = st
		data.haveState = true
		data.mu.Unlock()
	}); err != nil {
		return err
	}
	if err := subscribeJSON(client, "display", cfg.TopicFallEvent, func(ev notify.EventMessage) {
		data.mu.Lock()
		data.lastFall = ev.Time
		data.haveLastFall = true
		data.mu.Unlock()
	}); err != nil {
		return err
	}
	if cfg.TopicPose != "" {
		if err := subscribeJSON(client, "display", cfg.TopicPose, func(p notify.PoseMessage) {
			data.mu.Lock()
			data.pose = p
			data.havePose = true
			data.mu.Unlock()
		}); err != nil {
			return err
		}
	}

	// Display update loop
	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		snapshot := data.snapshot()
		if err := drawStatus(dev, &snapshot); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}

	return nil
}

func drawStatus(dev *ssd1306.Dev, data *DisplayData) error {
	return dev.Draw(dev.Bounds(), renderStatus(data), image.Point{})
}
