package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create runs",
		SQL: `
			CREATE TABLE runs (
				id           TEXT PRIMARY KEY,
				plugin_id    TEXT NOT NULL,
				a            INTEGER NOT NULL,
				b            INTEGER NOT NULL,
				result       INTEGER NOT NULL DEFAULT 0,
				ok           INTEGER NOT NULL,
				error_code   TEXT NOT NULL DEFAULT '',
				error        TEXT NOT NULL DEFAULT '',
				source       TEXT NOT NULL DEFAULT '',
				started_at   TEXT NOT NULL,
				duration_us  INTEGER NOT NULL DEFAULT 0
			);

			CREATE INDEX idx_runs_plugin ON runs (plugin_id, started_at);
			CREATE INDEX idx_runs_started ON runs (started_at);
		`,
	},
	{
		Version: 2,
		Name:    "create plugin run stats view",
		SQL: `
			CREATE VIEW plugin_run_stats AS
			SELECT plugin_id,
			       COUNT(*)                                   AS total,
			       SUM(CASE WHEN ok = 1 THEN 1 ELSE 0 END)    AS succeeded,
			       SUM(CASE WHEN ok = 0 THEN 1 ELSE 0 END)    AS failed,
			       MAX(started_at)                            AS last_run_at
			FROM runs
			GROUP BY plugin_id;
		`,
	},
}
