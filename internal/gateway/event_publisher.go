package gateway

import "context"

// EventPublisher pushes status events to the notifier pipeline. Publishing is
// best-effort from the caller's point of view: failures are logged by the
// caller and never roll back settlement.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}
