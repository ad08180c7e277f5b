package domain

import (
	"context"
	"time"
)

// WaitPolicy controls how long Open waits before extraction.
type WaitPolicy int

const (
	// WaitLoad returns once the load event fired.
	WaitLoad WaitPolicy = iota
	// WaitNetworkIdle additionally waits for network activity to settle.
	WaitNetworkIdle
)

// Document is an opened page. Callers must Close it on every path.
type Document interface {
	Title() string
	// Texts returns the text content of every node matching selector.
	Texts(ctx context.Context, selector string) ([]string, error)
	// Attrs returns attr of every matching node that carries it.
	Attrs(ctx context.Context, selector, attr string) ([]string, error)
	Close() error
}

// Port is the browser automation capability shared by the stages.
type Port interface {
	// Available is false when the underlying browser never came up.
	Available() bool
	Open(ctx context.Context, url string, wait WaitPolicy) (Document, error)
	Close() error
}

// Category names a persistence store.
type Category string

const (
	CategoryOpportunities Category = "opportunities"
	CategoryCompetitors   Category = "competitors"
	CategoryTasks         Category = "tasks"
	CategoryReports       Category = "reports"
)

// Sink is write-only durable storage. Writing an existing key overwrites it;
// only tasks reuse keys.
type Sink interface {
	Append(ctx context.Context, category Category, key string, record any) error
}

// EventKind labels pipeline events.
type EventKind string

const (
	EventOpportunity EventKind = "opportunity"
	EventIntel       EventKind = "competitor_intel"
	EventTask        EventKind = "task"
	EventReport      EventKind = "report"
	EventStage       EventKind = "stage"
	EventEngine      EventKind = "engine"
)

// Event is a notification about pipeline progress.
type Event struct {
	Kind    EventKind `json:"kind"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}

// Publisher receives events. Implementations must not block.
type Publisher interface {
	Publish(Event)
}
