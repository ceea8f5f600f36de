package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/0xmhha/bead-sync/pkg/bus"
	"github.com/0xmhha/bead-sync/pkg/config"
	"github.com/0xmhha/bead-sync/pkg/display"
	"github.com/0xmhha/bead-sync/pkg/logger"
	"github.com/0xmhha/bead-sync/pkg/project"
	"github.com/0xmhha/bead-sync/pkg/snapshot"
	"github.com/0xmhha/bead-sync/pkg/watchman"
)

// loadConfig loads configuration and builds the logger.
func loadConfig(configPath string) (*config.Config, logger.Logger, error) {
	cfg, err := config.NewLoader(configPath).Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	return cfg, log, nil
}

// resolveRoots picks the workspace roots to act on: command-line
// arguments win, then the configured defaults.
func resolveRoots(args, configured []string) []string {
	if len(args) > 0 {
		return args
	}
	return configured
}

// lockedWriter serializes writes from the two frame streams sharing
// stdout.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// runWatchCommand runs the watch command.
func runWatchCommand(configPath string, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	projectRoot := fs.String("project", "", "only stream frames for this workspace root")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd := &watchCommand{
		roots:       fs.Args(),
		projectRoot: *projectRoot,
		configPath:  configPath,
	}

	return cmd.Execute()
}

// watchCommand watches workspace roots and streams frames to stdout.
type watchCommand struct {
	roots       []string
	projectRoot string
	configPath  string
}

// Execute runs the watch command.
func (c *watchCommand) Execute() error {
	cfg, log, err := loadConfig(c.configPath)
	if err != nil {
		return err
	}

	roots := resolveRoots(c.roots, cfg.WatchRoots)
	if len(roots) == 0 {
		return fmt.Errorf("no workspace roots: pass them as arguments or set watch_roots in config")
	}

	reader := snapshot.NewReader(snapshot.ReaderConfig{}, log)
	changes := bus.NewChangeBus(log)
	activity := bus.NewActivityBus(bus.HistoryConfig{
		Capacity: cfg.History.Capacity,
		Path:     cfg.History.Path,
	}, log)

	if loadErr := activity.LoadHistory(); loadErr != nil {
		log.Warn("failed to restore activity history", "error", loadErr)
	}

	mgr, err := watchman.New(watchman.Config{
		DebounceInterval: cfg.Watch.DebounceInterval,
		MessagesDir:      cfg.Messages.Dir,
	}, reader, changes, activity, log)
	if err != nil {
		return fmt.Errorf("failed to create watch manager: %w", err)
	}
	defer mgr.StopAll()

	for _, root := range roots {
		if watchErr := mgr.StartWatch(root); watchErr != nil {
			return fmt.Errorf("failed to watch %s: %w", root, watchErr)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	streamKey := project.Key(c.projectRoot)
	out := &lockedWriter{w: os.Stdout}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = bus.Stream(ctx, out, changes.Bus, streamKey, cfg.Watch.HeartbeatInterval, log)
	}()
	go func() {
		defer wg.Done()
		_ = bus.Stream(ctx, out, activity.Bus, streamKey, cfg.Watch.HeartbeatInterval, log)
	}()

	log.Info("watching", "roots", roots)
	wg.Wait()

	return nil
}

// runHistoryCommand runs the history command.
func runHistoryCommand(configPath string, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	projectRoot := fs.String("project", "", "filter history to this workspace root")
	format := fs.String("format", "table", "output format (table, json)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd := &historyCommand{
		projectRoot: *projectRoot,
		format:      *format,
		configPath:  configPath,
	}

	return cmd.Execute()
}

// historyCommand shows persisted activity history.
type historyCommand struct {
	projectRoot string
	format      string
	configPath  string
}

// Execute runs the history command.
func (c *historyCommand) Execute() error {
	cfg, log, err := loadConfig(c.configPath)
	if err != nil {
		return err
	}

	activity := bus.NewActivityBus(bus.HistoryConfig{
		Capacity: cfg.History.Capacity,
		Path:     cfg.History.Path,
	}, log)

	if loadErr := activity.LoadHistory(); loadErr != nil {
		return fmt.Errorf("failed to load activity history: %w", loadErr)
	}

	events := activity.History(project.Key(c.projectRoot))

	formatter := display.New(display.Config{Format: display.Format(c.format)})
	return formatter.FormatActivity(os.Stdout, events)
}
