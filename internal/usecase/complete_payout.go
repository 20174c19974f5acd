package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/GrowthSense/buntuanchorastralia/internal/domain"
	"github.com/GrowthSense/buntuanchorastralia/internal/gateway"
	"github.com/rs/zerolog/log"
)

const (
	idemKeyPrefix  = "idem:complete:"
	receiptCacheTTL = time.Hour
)

type CompletePayoutInput struct {
	AnchorTxID     string
	PickupCode     string
	IdempotencyKey string
	Actor          string
}

// CompletionReceipt is the response cached and replayed verbatim for a given
// idempotency key.
type CompletionReceipt struct {
	OK            bool   `json:"ok"`
	TransactionID string `json:"transaction_id"`
	CompletedAt   string `json:"completed_at"`
}

// CompletePayoutUseCase disburses a cash pickup exactly once. The idempotency
// store only shrinks the duplicate window; the compare-and-set against
// persisted payout state is what guarantees a single disbursement.
type CompletePayoutUseCase struct {
	transactionRepository gateway.TransactionRepository
	payoutRepository      gateway.PayoutRepository
	idempotencyRepository gateway.IdempotencyRepository
	transactionManager    gateway.TransactionManager
	eventPublisher        gateway.EventPublisher

	Now func() time.Time
}

func NewCompletePayout(
	txRepo gateway.TransactionRepository,
	payoutRepo gateway.PayoutRepository,
	idemRepo gateway.IdempotencyRepository,
	txManager gateway.TransactionManager,
	publisher gateway.EventPublisher,
) *CompletePayoutUseCase {
	return &CompletePayoutUseCase{
		transactionRepository: txRepo,
		payoutRepository:      payoutRepo,
		idempotencyRepository: idemRepo,
		transactionManager:    txManager,
		eventPublisher:        publisher,
		Now:                   time.Now,
	}
}

func (u *CompletePayoutUseCase) Execute(ctx context.Context, input CompletePayoutInput) (*CompletionReceipt, error) {
	if input.IdempotencyKey == "" {
		return nil, domain.ErrIdempotencyKeyRequired
	}
	cacheKey := idemKeyPrefix + input.IdempotencyKey

	// Replay a cached receipt without re-execution.
	if u.idempotencyRepository != nil {
		cached, err := u.idempotencyRepository.Get(ctx, cacheKey)
		if err != nil {
			// A degraded idempotency store must not block disbursement;
			// the state-guarded completion below still prevents doubles.
			log.Error().Err(err).Msg("idempotency store lookup failed")
		} else if cached != nil {
			var receipt CompletionReceipt
			if err := json.Unmarshal(cached.Body, &receipt); err != nil {
				return nil, fmt.Errorf("decode cached receipt: %w", err)
			}
			return &receipt, nil
		}
	}

	payout, err := u.payoutRepository.GetByTransactionID(ctx, input.AnchorTxID)
	if err != nil {
		return nil, err
	}

	now := u.Now().UTC()
	switch err := payout.ValidateCompletion(input.PickupCode, now); err {
	case nil:
	case domain.ErrPayoutAlreadyPaid:
		// A prior call committed but its reply was lost: rebuild the same
		// receipt shape from persisted state and cache it.
		return u.replay(ctx, cacheKey, payout)
	default:
		return nil, err
	}

	// Atomic completion. The payout CAS and the transaction
	// transition commit together or not at all.
	won := false
	err = u.transactionManager.Run(ctx, func(ctxTx context.Context) error {
		txObject := ctxTx.Value(gateway.TransactionKey)
		if txObject == nil {
			return fmt.Errorf("transaction object missing from context")
		}
		payoutRepoTx := u.payoutRepository.WithTx(txObject)
		transactionRepoTx := u.transactionRepository.WithTx(txObject)

		var err error
		won, err = payoutRepoTx.Complete(ctxTx, payout.ID, now, input.Actor)
		if err != nil {
			return fmt.Errorf("complete payout: %w", err)
		}
		if !won {
			return nil // concurrent completion won; replay below
		}

		completedAt := now
		return transactionRepoTx.Transition(ctxTx, input.AnchorTxID,
			[]domain.Status{domain.StatusPendingAnchor},
			gateway.StatusTransition{
				To:          domain.StatusCompleted,
				CompletedAt: &completedAt,
			})
	})
	if err != nil {
		return nil, err
	}

	if !won {
		fresh, err := u.payoutRepository.GetByTransactionID(ctx, input.AnchorTxID)
		if err != nil {
			return nil, err
		}
		if fresh.PaidOutAt == nil {
			return nil, domain.ErrPayoutNotReady
		}
		return u.replay(ctx, cacheKey, fresh)
	}

	publishStatus(ctx, u.eventPublisher, StatusEvent{
		TransactionID: input.AnchorTxID,
		Status:        "completed",
		Message:       "Cash payout completed successfully",
	})

	receipt := &CompletionReceipt{
		OK:            true,
		TransactionID: input.AnchorTxID,
		CompletedAt:   now.Format(time.RFC3339),
	}
	u.cache(ctx, cacheKey, receipt)
	return receipt, nil
}

func (u *CompletePayoutUseCase) replay(ctx context.Context, cacheKey string, payout *domain.CashPayout) (*CompletionReceipt, error) {
	receipt := &CompletionReceipt{
		OK:            true,
		TransactionID: payout.TransactionID,
		CompletedAt:   payout.PaidOutAt.UTC().Format(time.RFC3339),
	}
	u.cache(ctx, cacheKey, receipt)
	return receipt, nil
}

func (u *CompletePayoutUseCase) cache(ctx context.Context, cacheKey string, receipt *CompletionReceipt) {
	if u.idempotencyRepository == nil {
		return
	}
	body, err := json.Marshal(receipt)
	if err != nil {
		log.Error().Err(err).Msg("encode completion receipt")
		return
	}
	if err := u.idempotencyRepository.Save(ctx, cacheKey, gateway.CachedReceipt{StatusCode: 200, Body: body}, receiptCacheTTL); err != nil {
		log.Error().Err(err).Msg("cache completion receipt")
	}
}
