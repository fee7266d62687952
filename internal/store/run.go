package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// defaultListLimit applies when a Filter has no positive Limit.
const defaultListLimit = 50

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Run is the recorded outcome of a single plugin invocation.
type Run struct {
	ID        string        `json:"id"`
	PluginID  string        `json:"pluginId"`
	A         int32         `json:"a"`
	B         int32         `json:"b"`
	Result    int32         `json:"result"`
	OK        bool          `json:"ok"`
	ErrorCode string        `json:"errorCode,omitempty"`
	Error     string        `json:"error,omitempty"`
	Source    string        `json:"source,omitempty"` // "cli" | "http" | "ws" | "mcp"
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
}

// Filter narrows List results.
type Filter struct {
	PluginID   string
	FailedOnly bool
	Limit      int
}

func (f Filter) limit() int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

// PluginStats aggregates runs for one plugin.
type PluginStats struct {
	PluginID  string    `json:"pluginId"`
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	LastRunAt time.Time `json:"lastRunAt"`
}

// RunStore records plugin runs. Implementations are safe for concurrent use.
type RunStore interface {
	Record(run Run) error
	Get(id string) (*Run, error)
	// List returns matching runs, newest first.
	List(filter Filter) ([]Run, error)
	// Stats returns per-plugin aggregates ordered by plugin ID.
	Stats() ([]PluginStats, error)
}
