package messaging

import (
	"context"

	"github.com/climastore/backend/internal/entity"
)

// Publisher publishes domain events to the message bus. Publishing happens
// after the owning transaction commits; failures are logged by callers, not
// rolled back into the workflow.
type Publisher interface {
	PublishEvent(ctx context.Context, event entity.Event) error
}

// NopPublisher discards events. Used when no broker is configured and in
// tests.
type NopPublisher struct{}

func (NopPublisher) PublishEvent(ctx context.Context, event entity.Event) error { return nil }
