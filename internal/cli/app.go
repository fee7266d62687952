package cli

import (
	"fmt"

	"github.com/soyeahso/plugcat/internal/calc"
	"github.com/soyeahso/plugcat/internal/config"
	"github.com/soyeahso/plugcat/internal/hooks"
	"github.com/soyeahso/plugcat/internal/plugin"
	"github.com/soyeahso/plugcat/internal/store"
)

// app bundles what commands need to run plugins.
type app struct {
	cfg     config.Config
	hooks   *hooks.Manager
	exec    *calc.Executor
	history store.RunStore
	closeFn func() error
}

func (a *app) Close() error {
	if a.closeFn == nil {
		return nil
	}
	return a.closeFn()
}

// loadConfig reads and validates the config file.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return cfg, err
	}
	if issues := config.Validate(&cfg); len(issues) > 0 {
		for _, issue := range issues {
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		}
		return cfg, fmt.Errorf("config validation failed with %d issue(s)", len(issues))
	}
	return cfg, nil
}

// openApp loads config and opens the run history it names.
func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if cfg.History.Store == "sqlite" && cfg.History.Path == "" {
		if err := paths.EnsureDirs(); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
	}

	history, closer, err := store.OpenRunStore(cfg.History.Store, paths.HistoryDB(cfg.History), log)
	if err != nil {
		return nil, fmt.Errorf("opening run history: %w", err)
	}

	hm := hooks.NewManager(log)
	opts := []calc.Option{calc.WithHooks(hm)}
	if history != nil {
		opts = append(opts, calc.WithHistory(history))
	}

	return &app{
		cfg:     cfg,
		hooks:   hm,
		exec:    calc.NewExecutor(plugin.NewRegistry(log), log, opts...),
		history: history,
		closeFn: closer.Close,
	}, nil
}
