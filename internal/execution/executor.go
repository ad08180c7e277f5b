// Package execution runs tasks and owns their state machine:
// pending -> completed or pending -> failed, never back to pending.
package execution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"autopilot/internal/domain"
)

// Handler performs the work behind one task type.
type Handler interface {
	Execute(ctx context.Context, task domain.Task) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, task domain.Task) error

func (f HandlerFunc) Execute(ctx context.Context, task domain.Task) error {
	return f(ctx, task)
}

// Executor dispatches tasks to handlers by type.
type Executor struct {
	handlers map[domain.TaskType]Handler
	logger   *slog.Logger
	now      func() time.Time
}

func NewExecutor(handlers map[domain.TaskType]Handler, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		handlers: handlers,
		logger:   logger.With("component", "executor"),
		now:      time.Now,
	}
}

// Run executes task in place and reports whether its status changed.
//
// A task without a handler stays pending and Run returns
// domain.ErrUnknownTaskType. A handler error or panic moves the task to
// failed and Run returns an error wrapping domain.ErrExecution. Terminal
// tasks are rejected with domain.ErrTaskTerminal.
func (e *Executor) Run(ctx context.Context, task *domain.Task) (changed bool, err error) {
	if task.Status.Terminal() {
		return false, fmt.Errorf("%w: %s is %s", domain.ErrTaskTerminal, task.ID, task.Status)
	}

	h, ok := e.handlers[task.Type]
	if !ok {
		e.logger.Warn("unknown task type", "task", task.ID, "type", task.Type)
		return false, fmt.Errorf("%w: %q", domain.ErrUnknownTaskType, task.Type)
	}

	if err := safeExecute(ctx, h, *task); err != nil {
		task.Status = domain.TaskFailed
		task.Error = err.Error()
		e.logger.Error("task execution failed", "task", task.ID, "type", task.Type, "error", err)
		return true, fmt.Errorf("%w: %w", domain.ErrExecution, err)
	}

	done := e.now()
	task.Status = domain.TaskCompleted
	task.CompletedAt = &done
	e.logger.Info("task completed", "task", task.ID, "type", task.Type, "title", task.Title)
	return true, nil
}

func safeExecute(ctx context.Context, h Handler, task domain.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Execute(ctx, task)
}

// DefaultHandlers returns the built-in handlers. Clone and optimize work is
// recorded in the log only; research is manual work acknowledged when a
// person triggers it.
func DefaultHandlers(logger *slog.Logger) map[domain.TaskType]Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logOnly := func(msg string) Handler {
		return HandlerFunc(func(_ context.Context, task domain.Task) error {
			logger.Info(msg, "task", task.ID, "title", task.Title)
			return nil
		})
	}
	return map[domain.TaskType]Handler{
		domain.TaskClone:    logOnly("executing clone task"),
		domain.TaskOptimize: logOnly("executing optimization task"),
		domain.TaskResearch: logOnly("research task acknowledged"),
	}
}
