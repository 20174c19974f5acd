package usecase

import (
	"context"

	"github.com/GrowthSense/buntuanchorastralia/internal/gateway"
	"github.com/rs/zerolog/log"
)

const (
	eventsExchange      = "anchor_events"
	routingKeyCompleted = "transaction.status.completed"
	routingKeyFailed    = "transaction.status.failed"
)

// StatusEvent is the payload pushed to the downstream wallet backend by the
// notifier worker.
type StatusEvent struct {
	TransactionID string                 `json:"transactionId"`
	Status        string                 `json:"status"`
	Stage         string                 `json:"stage,omitempty"`
	Reason        string                 `json:"reason,omitempty"`
	Message       string                 `json:"message,omitempty"`
	UserMessage   string                 `json:"userMessage,omitempty"`
	LedgerTxHash  string                 `json:"ledgerTxHash,omitempty"`
	BankResponse  map[string]interface{} `json:"bankResponse,omitempty"`
}

// publishStatus is fire-and-forget: a publish failure is logged and swallowed
// so it can never roll back or fail a settlement.
func publishStatus(ctx context.Context, pub gateway.EventPublisher, ev StatusEvent) {
	if pub == nil {
		return
	}
	key := routingKeyCompleted
	if ev.Status != "completed" {
		key = routingKeyFailed
	}
	if err := pub.Publish(ctx, eventsExchange, key, ev); err != nil {
		log.Error().Err(err).Str("transaction_id", ev.TransactionID).Msg("failed to publish status event")
	}
}
