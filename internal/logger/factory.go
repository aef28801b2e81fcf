// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"github.com/rs/zerolog"
)

// Static logger getters that map directly to config.yaml log.levels
// These ensure consistent logger names across the codebase

// GetMonitorLogger returns a logger for file monitoring
func GetMonitorLogger() zerolog.Logger {
	return GetLogger("monitor")
}

// GetParserLogger returns a logger for stream parsing
func GetParserLogger() zerolog.Logger {
	return GetLogger("parser")
}

// GetServerLogger returns a logger for the HTTP/WebSocket server
func GetServerLogger() zerolog.Logger {
	return GetLogger("server")
}

// GetCLILogger returns a logger for CLI commands
func GetCLILogger() zerolog.Logger {
	return GetLogger("cli")
}

// GetTUILogger returns a logger for TUI components
func GetTUILogger() zerolog.Logger {
	return GetLogger("tui")
}
