// Command foxsync synchronizes staged configuration with a FoxESS
// Cloud inverter.
//
// Usage:
//
//	# Run as a daemon with a config file
//	foxsync -config /etc/foxsync/foxsync.yaml
//
//	# Interactive console against the only device on the account
//	foxsync -api-key <key> -interactive
//
//	# Pick a device and poll faster
//	foxsync -api-key <key> -device 60KH12345 -poll-minutes 2
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/foxsync/foxsync-go/cmd/foxsync/interactive"
	"github.com/foxsync/foxsync-go/pkg/config"
	"github.com/foxsync/foxsync-go/pkg/service"
)

var (
	configFile  string
	apiKey      string
	deviceSN    string
	pollMinutes int
	stateFile   string
	auditLog    string
	logLevel    string
	runConsole  bool
)

func init() {
	flag.StringVar(&configFile, "config", "", "Configuration file path")
	flag.StringVar(&apiKey, "api-key", "", "FoxESS Cloud API key (overrides config)")
	flag.StringVar(&deviceSN, "device", "", "Inverter serial (default: only device on account)")
	flag.IntVar(&pollMinutes, "poll-minutes", 0, "Telemetry poll interval in minutes (1-60)")
	flag.StringVar(&stateFile, "state", "", "State file for staged values and budget window")
	flag.StringVar(&auditLog, "audit", "", "CBOR audit trail path")
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.BoolVar(&runConsole, "interactive", false, "Run the interactive console")
}

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Invalid configuration:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	svc, err := service.New(cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to create service:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to start service:", err)
		os.Exit(1)
	}
	logger.Info("started",
		"device", svc.Device().DeviceSN,
		"station", svc.Device().StationName,
		"profile", svc.Capabilities().Profile.ID)

	if runConsole {
		console, err := interactive.New(svc)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Failed to start console:", err)
			_ = svc.Stop()
			os.Exit(1)
		}
		console.Run(ctx, cancel)
	} else {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("shutting down", "signal", sig.String())
	}

	if err := svc.Stop(); err != nil {
		logger.Error("stopping service", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file (when given) and applies flag
// overrides on top.
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		loaded, err := config.ReadFile(configFile)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	if deviceSN != "" {
		cfg.DeviceSN = deviceSN
	}
	if pollMinutes != 0 {
		cfg.PollMinutes = pollMinutes
	}
	if stateFile != "" {
		cfg.StateFile = stateFile
	}
	if auditLog != "" {
		cfg.AuditLog = auditLog
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
