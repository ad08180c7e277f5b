package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPortUnavailable = errors.New("browser port unavailable")
	ErrFetch           = errors.New("fetch failed")
	ErrPersistence     = errors.New("persistence failed")
	ErrExecution       = errors.New("task execution failed")
	ErrUnknownTaskType = errors.New("unknown task type")
	ErrTaskNotFound    = errors.New("task not found")
	ErrTaskTerminal    = errors.New("task already terminal")
	ErrTaskRunning     = errors.New("task already executing")
)

// FetchError records which target a scrape failed on.
type FetchError struct {
	Target string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Target, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{ErrFetch, e.Err}
}
