package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"

	"storyreel/internal/config"
	"storyreel/internal/database"
	"storyreel/internal/server"
)

func main() {
	configPath := flag.String("config", "storyreel.yaml", "path to the configuration file")
	logLevel := flag.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	flag.Parse()

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "storyreel",
		Level: hclog.LevelFromString(*logLevel),
	})

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(logger, cfg, db)
	if err := srv.Start(ctx); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
