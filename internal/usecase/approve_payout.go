package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/GrowthSense/buntuanchorastralia/internal/domain"
	"github.com/GrowthSense/buntuanchorastralia/internal/gateway"
)

// ApprovePayoutUseCase is the administrative path around the watcher: an
// operator can flip a payout ready, or nudge a stuck transaction forward,
// without waiting for the on-chain observation.
type ApprovePayoutUseCase struct {
	transactionRepository gateway.TransactionRepository
	payoutRepository      gateway.PayoutRepository

	Now func() time.Time
}

func NewApprovePayout(txRepo gateway.TransactionRepository, payoutRepo gateway.PayoutRepository) *ApprovePayoutUseCase {
	return &ApprovePayoutUseCase{
		transactionRepository: txRepo,
		payoutRepository:      payoutRepo,
		Now:                   time.Now,
	}
}

// Approve flips ready directly for operator-initiated disbursement flows.
// Requires the owning transaction to be in pending_anchor; completion itself
// still goes through the idempotent completion endpoint.
func (u *ApprovePayoutUseCase) Approve(ctx context.Context, pickupCode string) (*domain.Transaction, error) {
	payout, err := u.payoutRepository.GetByCode(ctx, pickupCode)
	if err != nil {
		return nil, err
	}
	if payout.Ready {
		return nil, domain.ErrPayoutAlreadyReady
	}

	tx, err := u.transactionRepository.GetByID(ctx, payout.TransactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != domain.StatusPendingAnchor {
		return nil, &domain.StaleStateError{
			TransactionID: tx.ID,
			Current:       tx.Status,
			Requested:     domain.StatusPendingAnchor,
		}
	}

	if _, err := u.payoutRepository.MarkReady(ctx, payout.ID); err != nil {
		return nil, fmt.Errorf("approve payout %s: %w", pickupCode, err)
	}
	return tx, nil
}

// MarkReadyResult reports the transition performed by MarkTransactionReady.
type MarkReadyResult struct {
	TransactionID string        `json:"transaction_id"`
	OldStatus     domain.Status `json:"old_status"`
	NewStatus     domain.Status `json:"new_status"`
}

// MarkTransactionReady advances the owning transaction from
// pending_user_transfer_start to pending_anchor by pickup code. It exists for
// recovery when the watcher missed the funding payment.
func (u *ApprovePayoutUseCase) MarkTransactionReady(ctx context.Context, pickupCode string) (*MarkReadyResult, error) {
	payout, err := u.payoutRepository.GetAnyByCode(ctx, pickupCode)
	if err != nil {
		return nil, err
	}
	tx, err := u.transactionRepository.GetByID(ctx, payout.TransactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != domain.StatusPendingUserTransferStart {
		return nil, &domain.StaleStateError{
			TransactionID: tx.ID,
			Current:       tx.Status,
			Requested:     domain.StatusPendingAnchor,
		}
	}

	err = u.transactionRepository.Transition(ctx, tx.ID,
		[]domain.Status{domain.StatusPendingUserTransferStart},
		gateway.StatusTransition{To: domain.StatusPendingAnchor})
	if err != nil {
		return nil, err
	}
	return &MarkReadyResult{
		TransactionID: tx.ID,
		OldStatus:     tx.Status,
		NewStatus:     domain.StatusPendingAnchor,
	}, nil
}
