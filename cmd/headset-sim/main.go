// cmd/headset-sim/main.go - simulated VR headset peer
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"vr-datastreamer/internal/config"
	"vr-datastreamer/internal/simulator"
	"vr-datastreamer/internal/utils"
)

func main() {
	scenarioPath := flag.String("scenario", "", "yaml scenario file (optional)")
	listen := flag.String("listen", "", "stream listen address, overrides the scenario")
	beacon := flag.String("beacon", "", "beacon target address, overrides the scenario")
	rate := flag.Float64("rate", 0, "records per second, overrides the scenario")
	records := flag.Int("records", -1, "records per session, 0 streams until the host leaves")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger, err := utils.NewLogger(&config.LoggingConfig{Level: *level, Format: "console", Output: "stdout"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer utils.CloseLogger(logger)

	scenario, err := simulator.LoadScenario(*scenarioPath)
	if err != nil {
		logger.Fatal("Failed to load scenario", zap.Error(err))
	}

	headset := scenario.Headset
	if *listen != "" {
		headset.StreamListen = *listen
	}
	if *beacon != "" {
		headset.BeaconTarget = *beacon
	}
	if *rate > 0 {
		headset.RateHz = *rate
	}
	if *records >= 0 {
		headset.Records = *records
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sim := simulator.NewHeadset(headset, logger)
	if err := sim.Run(ctx); err != nil {
		logger.Fatal("Simulated headset failed", zap.Error(err))
	}

	logger.Info("Simulated headset stopped",
		zap.Int64("sessions", sim.Sessions()),
		zap.Int64("records_sent", sim.Sent()),
	)
}
