package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/GrowthSense/buntuanchorastralia/internal/domain"
	"github.com/GrowthSense/buntuanchorastralia/internal/gateway"
	"github.com/rs/zerolog/log"
)

// DispatchChainPayoutUseCase sends the on-chain leg of a settlement: the
// anchor pays amount_out to the user's ledger account. Used by deposits and
// by the rail webhook's anchor-to-user branch. An underfunded distribution
// account triggers the compensating bank refund of amount_in.
type DispatchChainPayoutUseCase struct {
	transactionRepository gateway.TransactionRepository
	ledger                gateway.LedgerGateway
	refunder              *SettleWithdrawalUseCase
	eventPublisher        gateway.EventPublisher

	Now func() time.Time
}

func NewDispatchChainPayout(
	txRepo gateway.TransactionRepository,
	ledger gateway.LedgerGateway,
	refunder *SettleWithdrawalUseCase,
	publisher gateway.EventPublisher,
) *DispatchChainPayoutUseCase {
	return &DispatchChainPayoutUseCase{
		transactionRepository: txRepo,
		ledger:                ledger,
		refunder:              refunder,
		eventPublisher:        publisher,
		Now:                   time.Now,
	}
}

func (u *DispatchChainPayoutUseCase) Execute(ctx context.Context, tx *domain.Transaction) (domain.SettlementOutcome, error) {
	if !tx.Actionable() {
		return domain.SettlementOutcome{}, &domain.StaleStateError{
			TransactionID: tx.ID,
			Current:       tx.Status,
			Requested:     domain.StatusCompleted,
		}
	}
	actionable := domain.ActionableStatuses

	hash, err := u.ledger.SendPayment(ctx, tx)
	switch {
	case err == nil:
		now := u.Now().UTC()
		err := u.transactionRepository.Transition(ctx, tx.ID, actionable,
			gateway.StatusTransition{
				To:                   domain.StatusCompleted,
				LedgerTransactionRef: hash,
				CompletedAt:          &now,
			})
		if err != nil {
			return domain.SettlementOutcome{}, err
		}
		publishStatus(ctx, u.eventPublisher, StatusEvent{
			TransactionID: tx.ID,
			Status:        "completed",
			LedgerTxHash:  hash,
			Message:       "Ledger payment completed successfully",
		})
		return domain.Settled(hash), nil

	case errors.Is(err, domain.ErrLedgerUnderfunded):
		terr := u.transactionRepository.Transition(ctx, tx.ID, actionable,
			gateway.StatusTransition{
				To:            domain.StatusFailed,
				StatusMessage: "ANCHOR_UNDERFUNDED",
			})
		if terr != nil {
			return domain.SettlementOutcome{}, terr
		}
		refunded := u.refunder.Refund(ctx, tx)
		publishStatus(ctx, u.eventPublisher, StatusEvent{
			TransactionID: tx.ID,
			Status:        "failed",
			Stage:         "chain_payout",
			Reason:        "ANCHOR_UNDERFUNDED",
			UserMessage:   domain.MsgUnderfunded,
		})
		log.Error().
			Str("transaction_id", tx.ID).
			Bool("refunded", refunded).
			Msg("anchor distribution account underfunded")
		return domain.Underfunded("chain_payout", refunded), nil

	default:
		terr := u.transactionRepository.Transition(ctx, tx.ID, actionable,
			gateway.StatusTransition{
				To:            domain.StatusError,
				StatusMessage: err.Error(),
			})
		if terr != nil {
			return domain.SettlementOutcome{}, terr
		}
		publishStatus(ctx, u.eventPublisher, StatusEvent{
			TransactionID: tx.ID,
			Status:        "failed",
			Stage:         "chain_payout",
			Reason:        err.Error(),
			UserMessage:   domain.MsgGenericFail,
		})
		return domain.FailedAt("chain_payout", err.Error(), domain.MsgGenericFail), nil
	}
}
