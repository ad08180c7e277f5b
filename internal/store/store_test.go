package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"autopilot/internal/db"
	"autopilot/internal/domain"
)

func TestFile_WritesRecordPerKey(t *testing.T) {
	dir := t.TempDir()
	sink := NewFile(dir)
	ctx := context.Background()

	opp := domain.Opportunity{Market: "SaaS platforms", Trends: []string{"a"}, Priority: 35}
	if err := sink.Append(ctx, domain.CategoryOpportunities, "opportunity-1", opp); err != nil {
		t.Fatal(err)
	}
	if err := sink.Append(ctx, domain.CategoryOpportunities, "opportunity-2", opp); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "opportunities"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 files, got %d", len(entries))
	}
}

func TestFile_TaskOverwriteByID(t *testing.T) {
	dir := t.TempDir()
	sink := NewFile(dir)
	ctx := context.Background()

	task := domain.Task{ID: "abc", Status: domain.TaskPending}
	if err := sink.Append(ctx, domain.CategoryTasks, "task-abc", task); err != nil {
		t.Fatal(err)
	}
	task.Status = domain.TaskCompleted
	if err := sink.Append(ctx, domain.CategoryTasks, "task-abc", task); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "tasks", "task-abc.json"))
	if err != nil {
		t.Fatal(err)
	}
	var got domain.Task
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.TaskCompleted {
		t.Errorf("expected completed on disk, got %s", got.Status)
	}

	entries, _ := os.ReadDir(filepath.Join(dir, "tasks"))
	if len(entries) != 1 {
		t.Errorf("expected a single task file, got %d", len(entries))
	}
}

func TestFile_UnwritableDirFails(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocked")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	sink := NewFile(blocker)
	if err := sink.Append(context.Background(), domain.CategoryReports, "r", domain.Report{}); err == nil {
		t.Fatal("expected error writing beneath a regular file")
	}
}

func TestSQLite_TaskTransitionsRecorded(t *testing.T) {
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()
	if err := db.Migrate(database); err != nil {
		t.Fatal(err)
	}

	sink := NewSQLite(database)
	ctx := context.Background()
	task := domain.Task{ID: "t1", Status: domain.TaskPending}
	if err := sink.Append(ctx, domain.CategoryTasks, "task-t1", task); err != nil {
		t.Fatal(err)
	}
	task.Status = domain.TaskFailed
	task.Error = "boom"
	if err := sink.Append(ctx, domain.CategoryTasks, "task-t1", &task); err != nil {
		t.Fatal(err)
	}

	var records, transitions int
	database.QueryRow(`SELECT COUNT(*) FROM records WHERE category = 'tasks'`).Scan(&records)
	database.QueryRow(`SELECT COUNT(*) FROM task_transitions WHERE task_id = 't1'`).Scan(&transitions)
	if records != 1 {
		t.Errorf("expected 1 record row, got %d", records)
	}
	if transitions != 2 {
		t.Errorf("expected 2 transitions, got %d", transitions)
	}

	var body string
	if err := database.QueryRow(`SELECT body FROM records WHERE record_key = 'task-t1'`).Scan(&body); err != nil {
		t.Fatal(err)
	}
	var got domain.Task
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.TaskFailed || got.Error != "boom" {
		t.Errorf("unexpected stored task: %+v", got)
	}
}

type failingSink struct{ name string }

func (f failingSink) Append(context.Context, domain.Category, string, any) error {
	return errors.New("disk full")
}
func (f failingSink) Name() string { return f.name }

type countingSink struct{ n int }

func (c *countingSink) Append(context.Context, domain.Category, string, any) error {
	c.n++
	return nil
}
func (c *countingSink) Name() string { return "counting" }

func TestMulti_ContinuesPastFailure(t *testing.T) {
	ok := &countingSink{}
	m := NewMulti(failingSink{name: "broken"}, ok)

	err := m.Append(context.Background(), domain.CategoryReports, "report-x", domain.Report{})
	if err == nil {
		t.Fatal("expected joined error")
	}
	if !errors.Is(err, domain.ErrPersistence) {
		t.Errorf("expected ErrPersistence, got %v", err)
	}
	if ok.n != 1 {
		t.Errorf("healthy sink should still receive the write, got %d", ok.n)
	}
}

type fakePutter struct {
	key  string
	body []byte
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.key = *in.Key
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3_ObjectLayout(t *testing.T) {
	p := &fakePutter{}
	sink := &S3{client: p, bucket: "b", prefix: "autopilot"}

	if err := sink.Append(context.Background(), domain.CategoryReports, "report-2024-01-02", domain.Report{Date: "2024-01-02"}); err != nil {
		t.Fatal(err)
	}
	if p.key != "autopilot/reports/report-2024-01-02.json" {
		t.Errorf("unexpected key %s", p.key)
	}
	var r domain.Report
	if err := json.Unmarshal(p.body, &r); err != nil || r.Date != "2024-01-02" {
		t.Errorf("unexpected body %s (%v)", p.body, err)
	}
}

func TestNormaliseEndpoint(t *testing.T) {
	if got := normaliseEndpoint("minio:9000"); got != "https://minio:9000" {
		t.Errorf("got %s", got)
	}
	if got := normaliseEndpoint("http://minio:9000"); got != "http://minio:9000" {
		t.Errorf("got %s", got)
	}
}
