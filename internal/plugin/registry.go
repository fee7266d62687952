package plugin

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/soyeahso/plugcat/internal/logging"
)

// Factory creates a fresh plugin instance.
type Factory func() Plugin

// Entry binds a registry ID to its factory.
type Entry struct {
	ID      string
	Factory Factory
}

// builtins is the static plugin table. The set is fixed at build time.
var builtins = []Entry{
	{ID: "AddPlugin", Factory: newAddPlugin},
	{ID: "MultiplyPlugin", Factory: newMultiplyPlugin},
	{ID: "DividePlugin", Factory: newDividePlugin},
	{ID: "DivideWithRoundPlugin", Factory: newDivideWithRoundPlugin},
	{ID: "PowPlugin", Factory: newPowPlugin},
	{ID: "UltimateAnswerOfLifeAndUniverseAndEverythingPlugin", Factory: newUltimateAnswerPlugin},
}

// Registry is an immutable catalog of plugin factories keyed by ID.
// It is safe for concurrent use.
type Registry struct {
	factories map[string]Factory
	names     []string // sorted for deterministic listing
	log       *logging.Logger
}

// NewRegistry builds a registry over the built-in plugin table.
func NewRegistry(log *logging.Logger) *Registry {
	return newRegistry(builtins, log)
}

func newRegistry(entries []Entry, log *logging.Logger) *Registry {
	r := &Registry{
		factories: make(map[string]Factory, len(entries)),
		log:       log.Sub("plugins"),
	}

	for _, e := range entries {
		if !strings.HasSuffix(e.ID, idSuffix) || e.Factory == nil {
			r.log.Warn().Str("id", e.ID).Msg("skipping plugin entry not matching naming convention")
			continue
		}
		if _, exists := r.factories[e.ID]; exists {
			r.log.Warn().Str("id", e.ID).Msg("skipping duplicate plugin entry")
			continue
		}
		r.factories[e.ID] = e.Factory
		r.names = append(r.names, e.ID)
	}
	sort.Strings(r.names)

	r.log.Debug().Int("count", len(r.names)).Msg("plugin registry built")
	return r
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	return NewRegistry(logging.Nop())
})

// Default returns the process-wide registry over the built-in plugins.
func Default() *Registry {
	return defaultRegistry()
}

// Names returns all registered plugin IDs in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	return len(r.names)
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.factories[id]
	return ok
}

// Create returns a fresh instance of the plugin registered under id.
func (r *Registry) Create(id string) (Plugin, error) {
	factory, ok := r.factories[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlugin, id)
	}
	return factory(), nil
}

// Descriptor returns the metadata of the plugin registered under id.
func (r *Registry) Descriptor(id string) (Descriptor, error) {
	p, err := r.Create(id)
	if err != nil {
		return Descriptor{}, err
	}
	return Describe(p), nil
}

// Descriptors returns metadata for every registered plugin, ordered by ID.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.names))
	for _, id := range r.names {
		out = append(out, Describe(r.factories[id]()))
	}
	return out
}

// Names returns the IDs of the built-in plugins.
func Names() []string {
	return Default().Names()
}

// Create returns a fresh instance of the built-in plugin registered under id.
func Create(id string) (Plugin, error) {
	return Default().Create(id)
}
