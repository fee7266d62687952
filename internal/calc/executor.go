// Package calc runs catalog plugins on behalf of the CLI and gateway:
// it resolves the plugin, invokes it, fires hooks and records history.
package calc

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/plugcat/internal/hooks"
	"github.com/soyeahso/plugcat/internal/logging"
	"github.com/soyeahso/plugcat/internal/plugin"
	"github.com/soyeahso/plugcat/internal/store"
)

// Request asks for one plugin invocation.
type Request struct {
	PluginID string
	A        int32
	B        int32
	Source   string // "cli" | "http" | "ws" | "mcp"
}

// Result is the outcome of a plugin invocation. Err is nil on success.
type Result struct {
	RunID    string        `json:"runId"`
	PluginID string        `json:"pluginId"`
	A        int32         `json:"a"`
	B        int32         `json:"b"`
	Value    int32         `json:"value"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Executor runs plugins from a registry. Hooks and history are optional.
type Executor struct {
	registry *plugin.Registry
	history  store.RunStore
	hooks    *hooks.Manager
	log      *logging.Logger
	now      func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithHistory records every run in rs.
func WithHistory(rs store.RunStore) Option {
	return func(e *Executor) {
		e.history = rs
	}
}

// WithHooks emits run lifecycle events on hm.
func WithHooks(hm *hooks.Manager) Option {
	return func(e *Executor) {
		e.hooks = hm
	}
}

// NewExecutor creates an executor over the given registry.
func NewExecutor(reg *plugin.Registry, log *logging.Logger, opts ...Option) *Executor {
	e := &Executor{
		registry: reg,
		log:      log.Sub("calc"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the registry the executor resolves plugins from.
func (e *Executor) Registry() *plugin.Registry {
	return e.registry
}

// History returns the run store, or nil when history is disabled.
func (e *Executor) History() store.RunStore {
	return e.history
}

// Run resolves req.PluginID and applies it to the operands.
//
// Plugin failures (overflow, unknown plugin, ...) are reported in Result.Err
// and also returned, so callers can either inspect the result or propagate.
func (e *Executor) Run(ctx context.Context, req Request) (*Result, error) {
	res := &Result{
		RunID:    uuid.New().String(),
		PluginID: req.PluginID,
		A:        req.A,
		B:        req.B,
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := map[string]any{
		"runId":  res.RunID,
		"plugin": req.PluginID,
		"a":      req.A,
		"b":      req.B,
		"source": req.Source,
	}
	e.emit(ctx, hooks.EventBeforeRun, data)

	start := e.now()
	p, err := e.registry.Create(req.PluginID)
	if err == nil {
		res.Value, err = p.Run(req.A, req.B)
	}
	res.Duration = e.now().Sub(start)
	res.Err = err

	e.record(req, res, start)

	data["durationMs"] = res.Duration.Milliseconds()
	if err != nil {
		data["code"] = plugin.Code(err)
		data["error"] = err.Error()
		e.log.Debug().
			Err(err).
			Str("runId", res.RunID).
			Str("plugin", req.PluginID).
			Int32("a", req.A).
			Int32("b", req.B).
			Msg("plugin run failed")
		e.emit(ctx, hooks.EventRunFailed, data)
		return res, fmt.Errorf("run %s: %w", req.PluginID, err)
	}

	data["value"] = res.Value
	e.log.Debug().
		Str("runId", res.RunID).
		Str("plugin", req.PluginID).
		Int32("a", req.A).
		Int32("b", req.B).
		Int32("value", res.Value).
		Msg("plugin run")
	e.emit(ctx, hooks.EventAfterRun, data)
	return res, nil
}

func (e *Executor) emit(ctx context.Context, event string, data map[string]any) {
	if e.hooks != nil {
		e.hooks.Emit(ctx, event, data)
	}
}

// record stores the run. Store errors are logged, not returned.
func (e *Executor) record(req Request, res *Result, start time.Time) {
	if e.history == nil {
		return
	}

	run := store.Run{
		ID:        res.RunID,
		PluginID:  req.PluginID,
		A:         req.A,
		B:         req.B,
		Result:    res.Value,
		OK:        res.Err == nil,
		Source:    req.Source,
		StartedAt: start,
		Duration:  res.Duration,
	}
	if res.Err != nil {
		run.ErrorCode = plugin.Code(res.Err)
		run.Error = res.Err.Error()
	}

	if err := e.history.Record(run); err != nil {
		e.log.Warn().Err(err).Str("runId", res.RunID).Msg("failed to record run")
	}
}
