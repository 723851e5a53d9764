package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tixly/tixly/internal/api"
	"github.com/tixly/tixly/internal/app"
	"github.com/tixly/tixly/internal/config"
	"github.com/tixly/tixly/internal/logger"
)

func main() {
	configPath := flag.String("config", os.Getenv("TIXLY_CONFIG"), "path to a YAML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(cfg.Log.Format, cfg.Log.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Build the core once and share it
	core, err := app.New(ctx, cfg, app.Options{Out: os.Stderr})
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer core.Close()

	s := core.Sessions.Initialize(ctx)
	slog.Info("session initialized", "status", s.Status, "address", s.Address)

	server := api.NewServer(cfg.Server, core.APIDeps(), core.WriteTimeout())

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start(ctx)
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		slog.Error("server error", "error", err)
		core.Close()
		os.Exit(1)

	case sig := <-shutdown:
		slog.Info("received shutdown signal", "signal", sig.String())

		// In-flight connects and confirmations observe ctx
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("error during shutdown", "error", err)
			slog.Warn("forcing shutdown")
		}

		slog.Info("server stopped")
	}
}
