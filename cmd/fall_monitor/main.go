// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/fall_monitor/internal/app"
	"github.com/relabs-tech/fall_monitor/internal/config"
)

func main() {
	configPath := flag.String("config", "./fall_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting fall-monitor (IMU → fall detection → MQTT)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunFallMonitor(ctx); err != nil {
		log.Fatalf("fatal: %v", err)
	}
	log.Println("fall-monitor: shut down")
}
