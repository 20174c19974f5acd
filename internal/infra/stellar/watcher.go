package stellar

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/GrowthSense/buntuanchorastralia/internal/usecase"
	"github.com/rs/zerolog/log"
	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/protocols/horizon/operations"
)

const (
	initialReconnectDelay = time.Second
	maxReconnectDelay     = time.Minute
)

// Watcher streams payments into the anchor receive account and feeds them to
// the observation use case. It runs for the process lifetime: a dropped
// stream reconnects with exponential backoff and resumes from the last
// paging token; only context cancellation stops it.
type Watcher struct {
	client  horizonclient.ClientInterface
	account string
	observe *usecase.ObservePaymentUseCase

	running atomic.Bool
}

func NewWatcher(client horizonclient.ClientInterface, account string, observe *usecase.ObservePaymentUseCase) *Watcher {
	return &Watcher{
		client:  client,
		account: account,
		observe: observe,
	}
}

// Run blocks until ctx is cancelled. A second concurrent Run is rejected.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return fmt.Errorf("payment watcher already running")
	}
	defer w.running.Store(false)

	// "now" skips the historical backlog on first boot; already-settled
	// records reject stale transitions anyway.
	cursor := "now"
	delay := initialReconnectDelay

	for {
		request := horizonclient.OperationRequest{
			ForAccount: w.account,
			Cursor:     cursor,
		}
		log.Info().Str("account", w.account).Str("cursor", cursor).Msg("payment stream connecting")

		err := w.client.StreamPayments(ctx, request, func(op operations.Operation) {
			cursor = op.PagingToken()
			delay = initialReconnectDelay
			w.handle(ctx, op)
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}

		log.Error().Err(err).Dur("retry_in", delay).Msg("payment stream dropped")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// handle contains one event's failure to that event; a bad payment must not
// take the stream down.
func (w *Watcher) handle(ctx context.Context, op operations.Operation) {
	payment, ok := op.(operations.Payment)
	if !ok {
		return
	}
	if payment.To != w.account || !op.IsTransactionSuccessful() {
		return
	}

	// The memo lives on the enclosing ledger transaction, not the operation.
	detail, err := w.client.TransactionDetail(op.GetTransactionHash())
	if err != nil {
		log.Error().Err(err).Str("ledger_tx", op.GetTransactionHash()).Msg("failed to load transaction detail")
		return
	}

	err = w.observe.Execute(ctx, usecase.ObservedPayment{
		Memo:         detail.Memo,
		LedgerTxHash: detail.Hash,
	})
	if err != nil {
		log.Error().Err(err).Str("ledger_tx", detail.Hash).Msg("failed to apply observed payment")
	}
}
