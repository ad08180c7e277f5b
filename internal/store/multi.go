package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autopilot/internal/domain"
)

// Named is a sink that can identify itself in error messages.
type Named interface {
	domain.Sink
	Name() string
}

// Multi fans every write out to all backends. A failing backend does not
// stop the others; failures are joined and wrapped in domain.ErrPersistence.
type Multi struct {
	sinks []Named
}

func NewMulti(sinks ...Named) *Multi {
	return &Multi{sinks: sinks}
}

func (m *Multi) Append(ctx context.Context, category domain.Category, key string, record any) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Append(ctx, category, key, record); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrPersistence, errors.Join(errs...))
}

func nowUnixMilli() int64 {
	return time.Now().UnixMilli()
}
