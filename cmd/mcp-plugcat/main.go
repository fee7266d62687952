// Command mcp-plugcat serves the plugin catalog as MCP tools on stdio.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/soyeahso/plugcat/internal/calc"
	"github.com/soyeahso/plugcat/internal/config"
	"github.com/soyeahso/plugcat/internal/logging"
	"github.com/soyeahso/plugcat/internal/plugin"
	"github.com/soyeahso/plugcat/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mcp-plugcat: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	paths, err := config.ResolvePaths()
	if err != nil {
		return err
	}
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return err
	}
	if err := paths.EnsureDirs(); err != nil {
		return err
	}

	log, closeLog := openLogger(paths, cfg.Logging.Level)
	defer closeLog()
	log.Info().Msg("MCP plugcat server starting")

	history, closer, err := store.OpenRunStore(cfg.History.Store, paths.HistoryDB(cfg.History), log)
	if err != nil {
		return fmt.Errorf("opening run history: %w", err)
	}
	defer closer.Close()

	var opts []calc.Option
	if history != nil {
		opts = append(opts, calc.WithHistory(history))
	}
	exec := calc.NewExecutor(plugin.NewRegistry(log), log, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return NewMCPServer(exec, log, os.Stdout).Serve(ctx, os.Stdin)
}

// openLogger logs to ~/.plugcat/logs/mcp-plugcat.log and stderr. Stdout
// carries the protocol.
func openLogger(paths config.Paths, level string) (*logging.Logger, func()) {
	f, err := os.OpenFile(filepath.Join(paths.Logs, "mcp-plugcat.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		return logging.New(os.Stderr, level), func() {}
	}
	return logging.New(io.MultiWriter(f, os.Stderr), level), func() { f.Close() }
}
