// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"flag"
	"fmt"

	"github.com/noldarim/streamlog/internal/logger"
	"github.com/noldarim/streamlog/internal/tui"
	"github.com/noldarim/streamlog/pkg/monitor"
)

// tuiCommand opens the full-screen live viewer on one transcript.
func tuiCommand(args []string) error {
	cfg, err := initLogging("")
	if err != nil {
		return err
	}
	defer logger.CloseGlobal()

	fs := flag.NewFlagSet("tui", flag.ExitOnError)
	poll := fs.Duration("poll", cfg.Monitor.PollInterval, "Poll interval")
	buffer := fs.Int("buffer", cfg.Monitor.BufferSize, "Event buffer size")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: %s tui <file>", appName)
	}

	monLog := logger.GetMonitorLogger()
	return tui.Run(fs.Arg(0), monitor.Config{
		PollInterval: *poll,
		BufferSize:   *buffer,
		Logger:       &monLog,
	})
}
