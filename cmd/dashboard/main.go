package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	flag "github.com/spf13/pflag"

	"github.com/ydelafollye/aws-cost-dashboard-go/internal/config"
	"github.com/ydelafollye/aws-cost-dashboard-go/internal/exporter"
)

func main() {
	configPath := flag.StringP("config", "c", "config.yaml", "Path to the YAML configuration file")
	flag.Parse()

	// Graceful shutdown
	ctx, cancel := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Init logger
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config file", "path", *configPath, "error", err)
		os.Exit(1)
	}
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		slog.Warn("invalid log level, keeping info", "level", cfg.LogLevel)
	}

	// Create dashboard
	exp, err := exporter.New(ctx, cfg, logger)
	if err != nil {
		slog.Error("failed to create dashboard", "error", err)
		os.Exit(1)
	}

	// Run dashboard
	if err := exp.Run(ctx); err != nil {
		slog.Error("dashboard error", "error", err)
		os.Exit(1)
	}
}
