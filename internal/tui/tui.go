// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tui is the live transcript viewer: a bubbletea program fed by a
// file monitor, rendering session activity as it is appended.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/noldarim/streamlog/internal/logger"
	"github.com/noldarim/streamlog/pkg/monitor"
)

// Run monitors path and displays its session live until the user quits.
// cfg.Path is overridden with path; the monitor is cleaned up on exit.
func Run(path string, cfg monitor.Config) error {
	log := logger.GetTUILogger()

	cfg.Path = path
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := monitor.OpenStream(ctx, cfg)
	if err != nil {
		return err
	}
	defer stream.Cleanup()

	p := tea.NewProgram(NewModel(path), tea.WithAltScreen())

	// Bridge the monitor channels into the program. Send after the program
	// has quit is a no-op, so these goroutines simply drain until Cleanup
	// closes the channels.
	go func() {
		for ev := range stream.Events() {
			p.Send(eventMsg{event: ev})
		}
		p.Send(streamDoneMsg{})
	}()
	go func() {
		for err := range stream.Errors() {
			log.Warn().Err(err).Str("path", path).Msg("Monitor error")
			p.Send(streamErrMsg{err: err})
		}
	}()

	log.Info().Str("path", path).Msg("Starting live viewer")
	_, err = p.Run()
	log.Info().Str("path", path).Msg("Live viewer stopped")
	return err
}
