package store

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SQLiteRunStore implements RunStore backed by SQLite.
type SQLiteRunStore struct {
	db *DB
}

// NewSQLiteRunStore creates a run store using the given database.
func NewSQLiteRunStore(db *DB) *SQLiteRunStore {
	return &SQLiteRunStore{db: db}
}

// Record inserts a run. A missing ID or start time is filled in.
func (s *SQLiteRunStore) Record(run Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	_, err := s.db.sql.Exec(
		`INSERT INTO runs (id, plugin_id, a, b, result, ok, error_code, error, source, started_at, duration_us)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.PluginID, run.A, run.B, run.Result, boolToInt(run.OK),
		run.ErrorCode, run.Error, run.Source,
		run.StartedAt.UTC().Format(timeLayout), run.Duration.Microseconds(),
	)
	if err != nil {
		s.db.log.Error().Err(err).Str("id", run.ID).Msg("failed to record run")
		return err
	}
	return nil
}

const runColumns = `id, plugin_id, a, b, result, ok, error_code, error, source, started_at, duration_us`

// Get returns a run by ID, or ErrNotFound.
func (s *SQLiteRunStore) Get(id string) (*Run, error) {
	row := s.db.sql.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns runs matching the filter, newest first.
func (s *SQLiteRunStore) List(filter Filter) ([]Run, error) {
	var where []string
	var args []any
	if filter.PluginID != "" {
		where = append(where, "plugin_id = ?")
		args = append(args, filter.PluginID)
	}
	if filter.FailedOnly {
		where = append(where, "ok = 0")
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY started_at DESC, rowid DESC LIMIT ?`
	args = append(args, filter.limit())

	rows, err := s.db.sql.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Stats returns per-plugin aggregates from the plugin_run_stats view.
func (s *SQLiteRunStore) Stats() ([]PluginStats, error) {
	rows, err := s.db.sql.Query(
		`SELECT plugin_id, total, succeeded, failed, last_run_at
		 FROM plugin_run_stats ORDER BY plugin_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []PluginStats
	for rows.Next() {
		var st PluginStats
		var last string
		if err := rows.Scan(&st.PluginID, &st.Total, &st.Succeeded, &st.Failed, &last); err != nil {
			return nil, err
		}
		st.LastRunAt, _ = time.Parse(timeLayout, last)
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var startedAt string
	var durationUS int64

	if err := row.Scan(
		&run.ID, &run.PluginID, &run.A, &run.B, &run.Result, &run.OK,
		&run.ErrorCode, &run.Error, &run.Source, &startedAt, &durationUS,
	); err != nil {
		return Run{}, err
	}

	run.StartedAt, _ = time.Parse(timeLayout, startedAt)
	run.Duration = time.Duration(durationUS) * time.Microsecond
	return run, nil
}
