package pipeline

import (
	"context"
	"fmt"

	"autopilot/internal/domain"
)

// CreateTask turns rec into a pending task, records it, and runs it before
// returning when it is automated. The returned task reflects the final
// state; err is the execution error, if any.
func (p *Pipeline) CreateTask(ctx context.Context, rec domain.Recommendation) (domain.Task, error) {
	t := &domain.Task{
		ID:          p.newID(),
		Type:        rec.Type,
		Title:       rec.Title,
		Description: rec.Description,
		Priority:    rec.Priority,
		Status:      domain.TaskPending,
		CreatedBy:   "AI",
		CreatedAt:   p.now(),
		Automated:   rec.Automated,
	}
	created := *t

	p.appendTask(t)
	p.persist(ctx, domain.CategoryTasks, taskKey(created.ID), created)
	p.publish(domain.EventTask, created)
	p.log.Info("task created", "task", created.ID, "type", created.Type, "automated", created.Automated)

	if !created.Automated {
		return created, nil
	}
	return p.run(ctx, created)
}

// ExecuteTask runs a pending task on demand.
func (p *Pipeline) ExecuteTask(ctx context.Context, id string) (domain.Task, error) {
	t, ok := p.Task(id)
	if !ok {
		return domain.Task{}, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	return p.run(ctx, t)
}

// run executes a working copy of t and stores the result. A task is never
// executed twice at once.
func (p *Pipeline) run(ctx context.Context, t domain.Task) (domain.Task, error) {
	p.mu.Lock()
	if cur, ok := p.taskIndex[t.ID]; ok {
		t = *cur
	}
	if t.Status.Terminal() {
		p.mu.Unlock()
		return t, fmt.Errorf("%w: %s is %s", domain.ErrTaskTerminal, t.ID, t.Status)
	}
	if _, busy := p.running[t.ID]; busy {
		p.mu.Unlock()
		return t, fmt.Errorf("%w: %s", domain.ErrTaskRunning, t.ID)
	}
	p.running[t.ID] = struct{}{}
	p.mu.Unlock()

	changed, err := p.deps.Executor.Run(ctx, &t)

	p.mu.Lock()
	delete(p.running, t.ID)
	if changed {
		// The task may have been evicted meanwhile; it is still persisted.
		if cur, ok := p.taskIndex[t.ID]; ok {
			*cur = t
		}
	}
	p.mu.Unlock()

	if changed {
		p.deps.Tracker.RecordTask(t.Status)
		p.persist(ctx, domain.CategoryTasks, taskKey(t.ID), t)
		p.publish(domain.EventTask, t)
	}
	return t, err
}

func taskKey(id string) string {
	return "task-" + id
}
