package db

const schemaSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS records (
    category TEXT NOT NULL,
    record_key TEXT NOT NULL,
    body TEXT NOT NULL,
    first_written_at TEXT NOT NULL DEFAULT (datetime('now')),
    last_written_at TEXT NOT NULL DEFAULT (datetime('now')),
    PRIMARY KEY (category, record_key)
);
CREATE INDEX IF NOT EXISTS idx_records_category_time ON records(category, first_written_at);

CREATE TABLE IF NOT EXISTS task_transitions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    task_id TEXT NOT NULL,
    status TEXT NOT NULL,
    error TEXT,
    recorded_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_task_transitions_task ON task_transitions(task_id);
`
