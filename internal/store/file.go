// Package store implements domain.Sink over local files, SQLite, Redis and
// S3-compatible object storage.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"autopilot/internal/domain"
)

// File writes each record as indented JSON to <dir>/<category>/<key>.json.
type File struct {
	dir string
}

func NewFile(dir string) *File {
	return &File{dir: dir}
}

func (f *File) Append(_ context.Context, category domain.Category, key string, record any) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("file sink: encoding %s/%s: %w", category, key, err)
	}

	dir := filepath.Join(f.dir, string(category))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("file sink: creating %s: %w", dir, err)
	}

	// Write then rename so a reader never sees a half-written task overwrite.
	tmp, err := os.CreateTemp(dir, "."+key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("file sink: creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("file sink: writing %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("file sink: closing %s: %w", key, err)
	}

	path := filepath.Join(dir, key+".json")
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("file sink: renaming to %s: %w", path, err)
	}
	return nil
}

func (f *File) Name() string { return "file" }
