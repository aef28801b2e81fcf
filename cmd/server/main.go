// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/noldarim/streamlog/internal/config"
	"github.com/noldarim/streamlog/internal/logger"
	"github.com/noldarim/streamlog/internal/server"
	"github.com/noldarim/streamlog/pkg/monitor"
)

func main() {
	cfg, err := config.NewConfig("config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(&cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.CloseGlobal()

	mainLog := logger.GetLogger("main")
	mainLog.Info().Str("addr", cfg.Server.Addr()).Msg("Starting streamlog API server")

	// The manager owns every file monitor the API creates. Watches registered
	// over HTTP live until Unwatch or shutdown.
	monLog := logger.GetMonitorLogger()
	manager := monitor.NewManager(monitor.Config{
		PollInterval: cfg.Monitor.PollInterval,
		BufferSize:   cfg.Monitor.BufferSize,
		Logger:       &monLog,
	})

	srv := server.New(&cfg.Server, manager)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- srv.Run(ctx)
	}()

	// Wait for signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		mainLog.Info().Msgf("Received signal %v, shutting down...", sig)
	case err := <-serverErrChan:
		if err != nil {
			mainLog.Error().Err(err).Msg("Server error")
		}
	}

	// Graceful shutdown: fresh context with timeout, independent of the run context.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		mainLog.Error().Err(err).Msg("Error shutting down server")
	}

	// Now stop the monitors
	manager.Close()

	mainLog.Info().Msg("API server shut down")
}
