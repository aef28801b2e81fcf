// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/noldarim/streamlog/pkg/event"
	"github.com/noldarim/streamlog/pkg/logfile"
	"github.com/noldarim/streamlog/pkg/stream"
)

// fileSummary pairs a summary with the file it came from.
type fileSummary struct {
	Path string `json:"path"`
	logfile.Summary
}

// summaryCommand prints per-file transcript summaries.
func summaryCommand(args []string) error {
	var format string
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	fs.StringVar(&format, "format", "table", "Output format: table, json")
	if err := fs.Parse(args); err != nil {
		return err
	}

	paths := fs.Args()
	if len(paths) == 0 {
		return fmt.Errorf("usage: %s summary <file...> [-format table|json]", appName)
	}

	summaries := make([]fileSummary, 0, len(paths))
	for _, path := range paths {
		s, err := logfile.ReadSummary(path)
		if err != nil {
			return fmt.Errorf("summarize %s: %w", path, err)
		}
		summaries = append(summaries, fileSummary{Path: path, Summary: s})
	}

	switch strings.ToLower(format) {
	case "", "table":
		renderSummaryTable(os.Stdout, summaries)
		return nil
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func renderSummaryTable(out *os.File, summaries []fileSummary) {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetStyle(table.StyleRounded)

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignCenter, WidthMax: 60},
		{Number: 2, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 5, Align: text.AlignCenter, AlignHeader: text.AlignCenter},
		{Number: 6, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 7, Align: text.AlignRight, AlignHeader: text.AlignCenter},
	})
	tw.AppendHeader(table.Row{"File", "Session", "Events", "Messages", "Errors", "Cost", "Duration"})

	for _, s := range summaries {
		errMark := "-"
		if s.HasErrors {
			errMark = "yes"
		}
		cost := "-"
		if s.TotalCost != 0 {
			cost = fmt.Sprintf("$%.4f", s.TotalCost)
		}
		duration := "-"
		if s.DurationMS != 0 {
			duration = (time.Duration(s.DurationMS) * time.Millisecond).String()
		}
		session := s.SessionID
		if session == "" {
			session = "-"
		}
		tw.AppendRow(table.Row{s.Path, session, s.EventCount, s.AssistantMessages, errMark, cost, duration})
	}

	tw.Render()
}

// eventsCommand dumps a transcript's parsed events, optionally filtered by
// type and capped. The stream is lazy, so -n stops reading the file early.
func eventsCommand(args []string) error {
	var (
		typeFilter string
		limit      int
		asJSON     bool
	)
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	fs.StringVar(&typeFilter, "type", "", "Only events of this type (system, assistant, tool_use, tool_result, error, result)")
	fs.IntVar(&limit, "n", 0, "Stop after N events (0 means all)")
	fs.BoolVar(&asJSON, "json", false, "Print raw JSON lines instead of the readable form")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: %s events <file> [-type T] [-n N] [-json]", appName)
	}

	events, err := logfile.Stream(fs.Arg(0))
	if err != nil {
		return err
	}
	if typeFilter != "" {
		events = stream.FilterType(events, event.Type(typeFilter))
	}
	if limit > 0 {
		events = stream.Take(events, limit)
	}

	for ev := range events {
		if asJSON {
			fmt.Println(string(ev.Raw))
			continue
		}
		fmt.Println(describeEvent(ev))
	}
	return nil
}

// describeEvent renders one event as a single readable line.
func describeEvent(ev event.Event) string {
	tag := fmt.Sprintf("%-12s", string(ev.Type))

	switch ev.Type {
	case event.TypeSystem:
		var parts []string
		if ev.SessionID != "" {
			parts = append(parts, "session="+ev.SessionID)
		}
		if ev.Model != "" {
			parts = append(parts, "model="+ev.Model)
		}
		if len(ev.Tools) > 0 {
			parts = append(parts, fmt.Sprintf("tools=%d", len(ev.Tools)))
		}
		return tag + strings.Join(parts, " ")

	case event.TypeAssistant:
		return tag + clipLine(ev.AssistantText(), 100)

	case event.TypeToolUse:
		return tag + ev.ToolName

	case event.TypeToolResult:
		status := "ok"
		if ev.Failed() {
			status = "fail"
		}
		return tag + status + " " + clipLine(ev.OutputText(), 80)

	case event.TypeError:
		return tag + clipLine(ev.Error, 100)

	case event.TypeResult:
		return tag + fmt.Sprintf("%s cost=$%.4f duration=%s turns=%d",
			ev.Subtype, ev.ResolvedCost(),
			time.Duration(ev.DurationMS)*time.Millisecond, ev.NumTurns)
	}

	return tag + clipLine(string(ev.Raw), 80)
}

// contentCommand prints the assistant text of a transcript.
func contentCommand(args []string) error {
	fs := flag.NewFlagSet("content", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: %s content <file>", appName)
	}

	parsed, err := logfile.ParseFile(fs.Arg(0))
	if err != nil {
		return err
	}
	if parsed.Content != "" {
		fmt.Println(parsed.Content)
	}
	return nil
}

// checkCommand verifies that files look like stream-json transcripts. Any
// invalid file makes the command fail, so it can gate scripts.
func checkCommand(args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	paths := fs.Args()
	if len(paths) == 0 {
		return fmt.Errorf("usage: %s check <file...>", appName)
	}

	invalid := 0
	for _, path := range paths {
		if logfile.Valid(path) {
			fmt.Printf("%-8s %s\n", "ok", path)
		} else {
			fmt.Printf("%-8s %s\n", "invalid", path)
			invalid++
		}
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d files are not stream-json transcripts", invalid, len(paths))
	}
	return nil
}

func flattenLine(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
}

func clipLine(s string, n int) string {
	s = flattenLine(s)
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
