package domain

import "time"

// Opportunity is a scored market signal produced by a market scan.
type Opportunity struct {
	Market    string    `json:"market"`
	Trends    []string  `json:"trends"`
	Timestamp time.Time `json:"timestamp"`
	Priority  int       `json:"priority"` // 0-100
}

// CompetitorData is what the monitor extracts from one competitor page.
type CompetitorData struct {
	Title        string   `json:"title"`
	Pricing      []string `json:"pricing"`
	Features     []string `json:"features"`
	Technologies []string `json:"technologies"`
}

// CompetitorOpportunity is a gap derived from competitor data.
type CompetitorOpportunity struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
}

// CompetitorIntel is one persisted competitor snapshot.
type CompetitorIntel struct {
	URL           string                  `json:"url"`
	Data          CompetitorData          `json:"data"`
	Timestamp     time.Time               `json:"timestamp"`
	Opportunities []CompetitorOpportunity `json:"opportunities"`
}

// Priority is the coarse urgency attached to recommendations and tasks.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// TaskType selects the executor for a task.
type TaskType string

const (
	TaskClone    TaskType = "clone"
	TaskOptimize TaskType = "optimize"
	TaskResearch TaskType = "research"
)

// TaskStatus is the lifecycle state of a task. Only pending -> completed and
// pending -> failed are legal.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// Recommendation is an unpersisted suggestion that becomes one Task.
type Recommendation struct {
	Type        TaskType `json:"type"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	Automated   bool     `json:"automated"`
}

// Task is the only entity with a state machine.
type Task struct {
	ID          string     `json:"id"`
	Type        TaskType   `json:"type"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    Priority   `json:"priority"`
	Status      TaskStatus `json:"status"`
	CreatedBy   string     `json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	Automated   bool       `json:"automated"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Report is the daily aggregate snapshot.
type Report struct {
	Date           string  `json:"date"`
	Opportunities  int     `json:"opportunities"`
	TasksCompleted int     `json:"tasksCompleted"`
	NewRevenue     float64 `json:"newRevenue"`
	Optimizations  int     `json:"optimizations"`
}
