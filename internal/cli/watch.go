// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/noldarim/streamlog/internal/logger"
	"github.com/noldarim/streamlog/internal/tui/feed"
	"github.com/noldarim/streamlog/pkg/event"
	"github.com/noldarim/streamlog/pkg/monitor"
)

type watchOptions struct {
	manifestPath string
	dir          string
	poll         time.Duration
	buffer       int
}

// watchSource is one file to tail, with its display label.
type watchSource struct {
	path  string
	label string
}

// watchCommand tails one or more transcripts, printing display chunks as
// they land. Sources come from positional files, a YAML manifest, or a
// directory watched for *.jsonl files.
func watchCommand(args []string) error {
	cfg, err := initLogging("")
	if err != nil {
		return err
	}
	defer logger.CloseGlobal()

	opts := &watchOptions{}
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	fs.StringVar(&opts.manifestPath, "manifest", "", "YAML manifest of files to watch")
	fs.StringVar(&opts.dir, "dir", "", "Watch every *.jsonl file in a directory")
	fs.DurationVar(&opts.poll, "poll", cfg.Monitor.PollInterval, "Poll interval")
	fs.IntVar(&opts.buffer, "buffer", cfg.Monitor.BufferSize, "Event buffer size per file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if opts.dir != "" {
		if fs.NArg() > 0 || opts.manifestPath != "" {
			return fmt.Errorf("-dir cannot be combined with files or -manifest")
		}
		return watchDir(opts)
	}

	sources, err := resolveSources(fs.Args(), opts)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("usage: %s watch <file...> | -manifest <file> | -dir <dir>", appName)
	}
	return watchFiles(sources, opts)
}

// resolveSources merges positional files with the manifest, if given.
// Manifest poll_interval and buffer override the flag values when set.
func resolveSources(paths []string, opts *watchOptions) ([]watchSource, error) {
	sources := make([]watchSource, 0, len(paths))
	for _, p := range paths {
		sources = append(sources, watchSource{path: p, label: filepath.Base(p)})
	}

	if opts.manifestPath != "" {
		m, err := loadManifest(opts.manifestPath)
		if err != nil {
			return nil, err
		}
		for _, w := range m.Watches {
			label := w.Label
			if label == "" {
				label = filepath.Base(w.Path)
			}
			sources = append(sources, watchSource{path: w.Path, label: label})
		}
		if m.pollInterval > 0 {
			opts.poll = m.pollInterval
		}
		if m.Buffer > 0 {
			opts.buffer = m.Buffer
		}
	}

	return sources, nil
}

// watchManifest is the YAML schema for watch -manifest.
type watchManifest struct {
	Watches      []manifestWatch `yaml:"watches"`
	PollInterval string          `yaml:"poll_interval"`
	Buffer       int             `yaml:"buffer"`

	pollInterval time.Duration
}

type manifestWatch struct {
	Path  string `yaml:"path"`
	Label string `yaml:"label"`
}

func loadManifest(path string) (*watchManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m watchManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(m.Watches) == 0 {
		return nil, fmt.Errorf("manifest %s lists no watches", path)
	}
	for i, w := range m.Watches {
		if w.Path == "" {
			return nil, fmt.Errorf("manifest watch %d has no path", i)
		}
	}
	if m.PollInterval != "" {
		d, err := time.ParseDuration(m.PollInterval)
		if err != nil {
			return nil, fmt.Errorf("manifest poll_interval: %w", err)
		}
		m.pollInterval = d
	}

	return &m, nil
}

// watchFiles tails a fixed set of files through a watch manager, so each
// event arrives labeled with its source.
func watchFiles(sources []watchSource, opts *watchOptions) error {
	log := logger.GetCLILogger()
	monLog := logger.GetMonitorLogger()

	g := monitor.NewManager(monitor.Config{
		PollInterval: opts.poll,
		BufferSize:   opts.buffer,
		Logger:       &monLog,
	})
	defer g.Close()

	events := make(chan monitor.WatchEvent, 1024)
	defer g.Subscribe(events)()

	labels := make(map[string]string, len(sources))
	for _, src := range sources {
		id, err := g.Watch(src.path)
		if err != nil {
			return fmt.Errorf("watch %s: %w", src.path, err)
		}
		if info, ok := g.Lookup(id); ok {
			labels[info.Path] = src.label
		}
	}

	printer := newChunkPrinter(os.Stdout, len(sources) > 1)
	log.Info().Int("files", len(sources)).Msg("Watching transcripts")
	fmt.Fprintf(os.Stderr, "Watching %d file(s), ctrl-c to stop\n", len(sources))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	for {
		select {
		case we := <-events:
			printer.print(labels[we.Path], we.Event)
		case sig := <-sigChan:
			log.Info().Str("signal", sig.String()).Msg("Stopping watch")
			fmt.Fprintln(os.Stderr, "\nStopped")
			return nil
		}
	}
}

// watchDir tails every *.jsonl file in a directory, attaching to new files
// as they appear. Events carry no source path, so lines are labeled with
// the session id instead.
func watchDir(opts *watchOptions) error {
	log := logger.GetCLILogger()
	monLog := logger.GetMonitorLogger()

	d, err := monitor.OpenDir(context.Background(), opts.dir, monitor.Config{
		PollInterval: opts.poll,
		BufferSize:   opts.buffer,
		Logger:       &monLog,
	})
	if err != nil {
		return err
	}
	defer d.Cleanup()

	printer := newChunkPrinter(os.Stdout, true)
	log.Info().Str("dir", opts.dir).Int("active", len(d.Active())).Msg("Watching directory")
	fmt.Fprintf(os.Stderr, "Watching %s (%d active), ctrl-c to stop\n", opts.dir, len(d.Active()))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	for {
		select {
		case ev, ok := <-d.Events():
			if !ok {
				return nil
			}
			printer.print(ev.SessionID, ev)
		case err := <-d.Errors():
			if err != nil {
				log.Warn().Err(err).Msg("Monitor error")
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			}
		case sig := <-sigChan:
			log.Info().Str("signal", sig.String()).Msg("Stopping watch")
			fmt.Fprintln(os.Stderr, "\nStopped")
			return nil
		}
	}
}

// chunkPrinter renders chunks to a writer: styled feed entries on a tty,
// plain prefixed lines when output is piped.
type chunkPrinter struct {
	out        *os.File
	color      bool
	prefixed   bool
	labelStyle lipgloss.Style
}

func newChunkPrinter(out *os.File, prefixed bool) *chunkPrinter {
	return &chunkPrinter{
		out:        out,
		color:      isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()),
		prefixed:   prefixed,
		labelStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
	}
}

func (p *chunkPrinter) print(label string, ev event.Event) {
	chunk, ok := event.ChunkFromEvent(ev)
	if !ok {
		return
	}

	var line string
	if p.color {
		line = feed.RenderChunk(chunk, 0)
	} else {
		line = plainChunk(chunk)
	}

	if p.prefixed && label != "" {
		if p.color {
			label = p.labelStyle.Render(label)
		}
		line = label + " | " + line
	}
	fmt.Fprintln(p.out, line)
}

// plainChunk is the uncolored rendition used when output is piped.
func plainChunk(c event.Chunk) string {
	switch c.Kind {
	case event.ChunkContent:
		return flattenLine(c.Text)
	case event.ChunkToolUse:
		return "[tool] " + c.ToolName
	case event.ChunkToolResult:
		if c.Event.Failed() {
			return "[fail] " + flattenLine(c.Text)
		}
		out := flattenLine(c.Text)
		if out == "" {
			out = "done"
		}
		return "[ok] " + out
	case event.ChunkError:
		return "[error] " + flattenLine(c.Text)
	}
	return flattenLine(c.Text)
}
