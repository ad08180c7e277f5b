package execution

import (
	"context"
	"errors"
	"testing"

	"autopilot/internal/domain"
)

func pendingTask(typ domain.TaskType) *domain.Task {
	return &domain.Task{ID: "t1", Type: typ, Status: domain.TaskPending}
}

func TestRun_Completes(t *testing.T) {
	e := NewExecutor(DefaultHandlers(nil), nil)
	task := pendingTask(domain.TaskClone)

	changed, err := e.Run(context.Background(), task)
	if err != nil {
		t.Fatal(err)
	}
	if !changed || task.Status != domain.TaskCompleted || task.CompletedAt == nil {
		t.Errorf("expected completed task with timestamp, got %+v", task)
	}
}

func TestRun_HandlerErrorFails(t *testing.T) {
	e := NewExecutor(map[domain.TaskType]Handler{
		domain.TaskOptimize: HandlerFunc(func(context.Context, domain.Task) error {
			return errors.New("disk full")
		}),
	}, nil)
	task := pendingTask(domain.TaskOptimize)

	changed, err := e.Run(context.Background(), task)
	if !errors.Is(err, domain.ErrExecution) {
		t.Fatalf("expected ErrExecution, got %v", err)
	}
	if !changed || task.Status != domain.TaskFailed || task.Error != "disk full" {
		t.Errorf("unexpected task %+v", task)
	}
	if task.CompletedAt != nil {
		t.Error("failed task should not carry completedAt")
	}
}

func TestRun_PanicFails(t *testing.T) {
	e := NewExecutor(map[domain.TaskType]Handler{
		domain.TaskClone: HandlerFunc(func(context.Context, domain.Task) error {
			panic("nil map")
		}),
	}, nil)
	task := pendingTask(domain.TaskClone)

	if _, err := e.Run(context.Background(), task); !errors.Is(err, domain.ErrExecution) {
		t.Fatalf("expected ErrExecution, got %v", err)
	}
	if task.Status != domain.TaskFailed {
		t.Errorf("expected failed, got %s", task.Status)
	}
}

func TestRun_UnknownTypeStaysPending(t *testing.T) {
	e := NewExecutor(DefaultHandlers(nil), nil)
	task := pendingTask("deploy")

	changed, err := e.Run(context.Background(), task)
	if !errors.Is(err, domain.ErrUnknownTaskType) {
		t.Fatalf("expected ErrUnknownTaskType, got %v", err)
	}
	if changed || task.Status != domain.TaskPending || task.Error != "" {
		t.Errorf("unknown type must leave task untouched, got %+v", task)
	}
}

func TestRun_TerminalRejected(t *testing.T) {
	e := NewExecutor(DefaultHandlers(nil), nil)
	for _, s := range []domain.TaskStatus{domain.TaskCompleted, domain.TaskFailed} {
		task := pendingTask(domain.TaskClone)
		task.Status = s
		if _, err := e.Run(context.Background(), task); !errors.Is(err, domain.ErrTaskTerminal) {
			t.Errorf("%s: expected ErrTaskTerminal, got %v", s, err)
		}
		if task.Status != s {
			t.Errorf("%s: status changed to %s", s, task.Status)
		}
	}
}
