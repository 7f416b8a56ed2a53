// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"
	"os"

	"github.com/relabs-tech/fall_monitor/internal/app"
	"github.com/relabs-tech/fall_monitor/internal/config"
	"github.com/relabs-tech/fall_monitor/internal/sensors"
)

func main() {
	configPath := flag.String("config", "", "optional configuration file for the thresholds")
	scenario := flag.String("scenario", sensors.ScenarioFall, "mock scenario: idle or fall")
	duration := flag.Duration("duration", 2*sensors.FallCycle, "simulated time to run")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	log.Printf("simulating %v of the %s scenario at %.0f Hz", *duration, *scenario, cfg.SampleRateHz)

	if _, err := app.RunSimulation(*scenario, *duration, cfg.Thresholds(), os.Stdout); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
