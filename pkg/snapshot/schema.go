package snapshot

// SchemaVersion is bumped on any DDL change.
const SchemaVersion = 1

// DDL creates the snapshot tables.
const DDL = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS metric_snapshots (
	id                    TEXT PRIMARY KEY,
	taken_at              TIMESTAMP NOT NULL,
	provider              TEXT NOT NULL,
	total_requests        INTEGER NOT NULL,
	total_failures        INTEGER NOT NULL,
	success_rate          REAL NOT NULL,
	consecutive_failures  INTEGER NOT NULL,
	avg_latency_ms        REAL NOT NULL,
	p50_latency_ms        REAL NOT NULL,
	p95_latency_ms        REAL NOT NULL,
	latency_baseline_ms   REAL NOT NULL,
	error_rate_baseline   REAL NOT NULL,
	window_requests       INTEGER NOT NULL,
	window_success_rate   REAL NOT NULL,
	error_breakdown       TEXT
);

CREATE INDEX IF NOT EXISTS idx_metric_snapshots_provider_time
	ON metric_snapshots(provider, taken_at);

CREATE TABLE IF NOT EXISTS alert_snapshots (
	id           TEXT PRIMARY KEY,
	rule         TEXT NOT NULL,
	provider     TEXT,
	severity     TEXT NOT NULL,
	message      TEXT NOT NULL,
	context      TEXT,
	fired_at     TIMESTAMP NOT NULL,
	resolved_at  TIMESTAMP,
	occurrences  INTEGER NOT NULL,
	escalated    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alert_snapshots_fired
	ON alert_snapshots(fired_at);
`

const (
	insertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version) VALUES (?);`
	getSchemaVersion    = `SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;`
)
