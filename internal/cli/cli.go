// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the streamlog command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/noldarim/streamlog/internal/config"
	"github.com/noldarim/streamlog/internal/logger"
)

const (
	appName    = "streamlog"
	appVersion = "0.1.0"
)

// Execute runs the CLI application
func Execute() error {
	if len(os.Args) < 2 {
		return printUsage()
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "summary":
		return summaryCommand(args)
	case "events":
		return eventsCommand(args)
	case "content":
		return contentCommand(args)
	case "check":
		return checkCommand(args)
	case "watch":
		return watchCommand(args)
	case "tui":
		return tuiCommand(args)
	case "serve":
		return serveCommand(args)
	case "version":
		fmt.Printf("%s version %s\n", appName, appVersion)
		return nil
	case "help", "-h", "--help":
		return printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		return printUsage()
	}
}

func printUsage() error {
	fmt.Printf(`%s - stream-json transcript tools

Usage:
  %s <command> [arguments]

Commands:
  summary <file...>   Summarize transcripts (events, messages, cost)
  events <file>       Dump parsed events from a transcript
  content <file>      Print the assistant text of a transcript
  check <file...>     Verify files look like stream-json transcripts
  watch <file...>     Tail transcripts live, printing activity as it lands
  tui <file>          Watch one transcript in a full-screen viewer
  serve               Run the HTTP/WebSocket API server
  version             Print version information
  help                Show this help message

Examples:
  %s summary run.jsonl
  %s events run.jsonl -type tool_use -n 20
  %s watch run.jsonl other.jsonl
  %s watch -dir ~/.sessions
  %s watch -manifest watches.yaml
  %s tui run.jsonl
  %s serve -config config.yaml

`, appName, appName, appName, appName, appName, appName, appName, appName, appName)
	return nil
}

// initLogging loads the application config and initializes the global
// logger. Live commands log to the configured file outputs so terminal
// output stays clean; a missing config file just means defaults.
func initLogging(configPath string) (*config.AppConfig, error) {
	cfg, err := config.NewConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := logger.Initialize(&cfg.Log); err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	return cfg, nil
}
