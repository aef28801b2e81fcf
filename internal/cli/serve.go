// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/noldarim/streamlog/internal/logger"
	"github.com/noldarim/streamlog/internal/server"
	"github.com/noldarim/streamlog/pkg/monitor"
)

// serveCommand runs the HTTP/WebSocket API server until a signal arrives.
func serveCommand(args []string) error {
	var configPath string
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	fs.StringVar(&configPath, "config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := initLogging(configPath)
	if err != nil {
		return err
	}
	defer logger.CloseGlobal()

	log := logger.GetLogger("main")
	log.Info().Str("addr", cfg.Server.Addr()).Msg("Starting streamlog API server")

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

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		log.Info().Msgf("Received signal %v, shutting down...", sig)
	case err := <-serverErrChan:
		if err != nil {
			log.Error().Err(err).Msg("Server error")
			manager.Close()
			return err
		}
	}

	// Graceful shutdown: fresh context with timeout, independent of the
	// server's run context.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error shutting down server")
	}
	manager.Close()

	log.Info().Msg("API server shut down")
	return nil
}
