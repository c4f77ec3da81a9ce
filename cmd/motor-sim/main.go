//go:build linux || darwin

// cmd/motor-sim/main.go - simulated vibration motor controller on a pseudo terminal
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/creack/pty"
	"go.uber.org/zap"

	"vr-datastreamer/internal/config"
	"vr-datastreamer/internal/simulator"
	"vr-datastreamer/internal/utils"
)

func main() {
	scenarioPath := flag.String("scenario", "", "yaml scenario file (optional)")
	bootDelay := flag.Duration("boot-delay", -1, "delay before answering the greeting, overrides the scenario")
	silent := flag.Bool("silent", false, "never answer the greeting")
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

	motor := scenario.Motor
	if *bootDelay >= 0 {
		motor.BootDelay = *bootDelay
	}
	if *silent {
		motor.Silent = true
	}

	master, slave, err := pty.Open()
	if err != nil {
		logger.Fatal("Failed to open pseudo terminal", zap.Error(err))
	}
	defer master.Close()
	// The slave stays open so the pty survives between host connections.
	defer slave.Close()

	logger.Info("Simulated motor controller ready",
		zap.String("port", slave.Name()),
		zap.Duration("boot_delay", motor.BootDelay),
		zap.Bool("silent", motor.Silent),
	)
	fmt.Printf("Point serial.port_patterns at %s\n", slave.Name())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sim := simulator.NewMotor(motor, logger)
	for {
		err := sim.Serve(ctx, master)
		if ctx.Err() != nil {
			break
		}
		// A pty master read fails with EIO while no process holds the slave open.
		if err != nil && !errors.Is(err, syscall.EIO) {
			logger.Error("Serial loop failed", zap.Error(err))
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	logger.Info("Simulated motor controller stopped",
		zap.Int64("greetings", sim.Greetings()),
		zap.Int64("triggers", sim.Triggers()),
	)
}
