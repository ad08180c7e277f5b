package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"autopilot/internal/domain"
)

// SQLite upserts records into the records table keyed by (category, key).
// Task writes also append a row to task_transitions.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

func (s *SQLite) Append(ctx context.Context, category domain.Category, key string, record any) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("sqlite sink: encoding %s/%s: %w", category, key, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (category, record_key, body)
		VALUES (?, ?, ?)
		ON CONFLICT(category, record_key) DO UPDATE SET
			body = excluded.body,
			last_written_at = datetime('now')`,
		string(category), key, string(body),
	)
	if err != nil {
		return fmt.Errorf("sqlite sink: upserting %s/%s: %w", category, key, err)
	}

	if t, ok := taskOf(record); ok {
		var taskErr *string
		if t.Error != "" {
			taskErr = &t.Error
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO task_transitions (task_id, status, error) VALUES (?, ?, ?)`,
			t.ID, string(t.Status), taskErr,
		)
		if err != nil {
			return fmt.Errorf("sqlite sink: recording transition for %s: %w", t.ID, err)
		}
	}
	return nil
}

func (s *SQLite) Name() string { return "sqlite" }

func taskOf(record any) (domain.Task, bool) {
	switch t := record.(type) {
	case domain.Task:
		return t, true
	case *domain.Task:
		if t != nil {
			return *t, true
		}
	}
	return domain.Task{}, false
}
