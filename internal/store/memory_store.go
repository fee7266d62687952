package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRunStore implements RunStore in process memory. History is lost on exit.
type MemoryRunStore struct {
	mu   sync.RWMutex
	runs []Run // insertion order
}

// NewMemoryRunStore creates an empty in-memory run store.
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{}
}

// Record appends a run. A missing ID or start time is filled in.
func (m *MemoryRunStore) Record(run Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

// Get returns a run by ID, or ErrNotFound.
func (m *MemoryRunStore) Get(id string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.runs {
		if m.runs[i].ID == id {
			run := m.runs[i]
			return &run, nil
		}
	}
	return nil, ErrNotFound
}

// List returns runs matching the filter, newest first.
func (m *MemoryRunStore) List(filter Filter) ([]Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Run
	for i := len(m.runs) - 1; i >= 0; i-- {
		run := m.runs[i]
		if filter.PluginID != "" && run.PluginID != filter.PluginID {
			continue
		}
		if filter.FailedOnly && run.OK {
			continue
		}
		out = append(out, run)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})

	if len(out) > filter.limit() {
		out = out[:filter.limit()]
	}
	return out, nil
}

// Stats returns per-plugin aggregates ordered by plugin ID.
func (m *MemoryRunStore) Stats() ([]PluginStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byPlugin := make(map[string]*PluginStats)
	for _, run := range m.runs {
		st, ok := byPlugin[run.PluginID]
		if !ok {
			st = &PluginStats{PluginID: run.PluginID}
			byPlugin[run.PluginID] = st
		}
		st.Total++
		if run.OK {
			st.Succeeded++
		} else {
			st.Failed++
		}
		if run.StartedAt.After(st.LastRunAt) {
			st.LastRunAt = run.StartedAt
		}
	}

	stats := make([]PluginStats, 0, len(byPlugin))
	for _, st := range byPlugin {
		stats = append(stats, *st)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].PluginID < stats[j].PluginID })
	return stats, nil
}
