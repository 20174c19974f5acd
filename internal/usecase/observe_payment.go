package usecase

import (
	"context"
	"fmt"

	"github.com/GrowthSense/buntuanchorastralia/internal/domain"
	"github.com/GrowthSense/buntuanchorastralia/internal/gateway"
	"github.com/rs/zerolog/log"
)

// ObservedPayment is one inbound ledger payment already filtered to the
// anchor receive account, with its memo resolved.
type ObservedPayment struct {
	Memo         string
	LedgerTxHash string
}

// ObservePaymentUseCase bridges watcher events into the settlement state:
// match the in-flight withdrawal by memo, record the ledger ref, advance to
// pending_anchor, and flip the cash payout ready. Every sub-step is
// idempotent against the persisted state, so at-least-once delivery of the
// same event is a no-op the second time.
type ObservePaymentUseCase struct {
	transactionRepository gateway.TransactionRepository
	payoutRepository      gateway.PayoutRepository
}

func NewObservePayment(txRepo gateway.TransactionRepository, payoutRepo gateway.PayoutRepository) *ObservePaymentUseCase {
	return &ObservePaymentUseCase{
		transactionRepository: txRepo,
		payoutRepository:      payoutRepo,
	}
}

func (u *ObservePaymentUseCase) Execute(ctx context.Context, p ObservedPayment) error {
	if p.Memo == "" || p.LedgerTxHash == "" {
		return nil
	}

	tx, err := u.transactionRepository.GetPendingWithdrawalByMemo(ctx, p.Memo)
	if err != nil {
		if err == domain.ErrTransactionNotFound {
			return nil // payment unrelated to any in-flight withdrawal
		}
		return fmt.Errorf("resolve withdrawal by memo: %w", err)
	}

	if tx.Status == domain.StatusPendingUserTransferStart {
		err := u.transactionRepository.Transition(ctx, tx.ID,
			[]domain.Status{domain.StatusPendingUserTransferStart},
			gateway.StatusTransition{
				To:                   domain.StatusPendingAnchor,
				LedgerTransactionRef: p.LedgerTxHash,
			})
		if err != nil && !domain.IsStaleState(err) {
			return fmt.Errorf("advance withdrawal %s: %w", tx.ID, err)
		}
		// A stale state means a concurrent writer already advanced it;
		// re-delivery lands here and falls through to the payout check.
	}

	payout, err := u.payoutRepository.GetByTransactionID(ctx, tx.ID)
	if err != nil {
		if err == domain.ErrPayoutNotFound {
			return nil // bank-rail withdrawal, nothing to flip
		}
		return fmt.Errorf("resolve payout for %s: %w", tx.ID, err)
	}
	if payout.Ready || payout.PaidOutAt != nil {
		return nil
	}

	flipped, err := u.payoutRepository.MarkReady(ctx, payout.ID)
	if err != nil {
		return fmt.Errorf("mark payout ready for %s: %w", tx.ID, err)
	}
	if flipped {
		log.Info().
			Str("transaction_id", tx.ID).
			Str("ledger_tx", p.LedgerTxHash).
			Msg("cash payout ready for pickup")
	}
	return nil
}
