package messaging

import (
	"context"

	"github.com/clearmint/captable/internal/domain"
)

// Publisher defines the interface for publishing change events to the message
// broker. The store stays passive: the API layer publishes after a successful
// mutation, clients refetch on receipt.
type Publisher interface {
	// PublishChange publishes a change event
	PublishChange(ctx context.Context, event *domain.ChangeEvent) error
	// Close closes the connection
	Close()
}

// NopPublisher discards every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishChange(ctx context.Context, event *domain.ChangeEvent) error {
	return nil
}

func (NopPublisher) Close() {}
