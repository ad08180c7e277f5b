package browser

import (
	"context"

	"autopilot/internal/domain"
)

// Off is the port used when scraping is disabled or the browser failed to
// start. Every Open reports domain.ErrPortUnavailable.
type Off struct{}

func (Off) Available() bool { return false }

func (Off) Open(context.Context, string, domain.WaitPolicy) (domain.Document, error) {
	return nil, domain.ErrPortUnavailable
}

func (Off) Close() error { return nil }
