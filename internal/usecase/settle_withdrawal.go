package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/GrowthSense/buntuanchorastralia/internal/domain"
	"github.com/GrowthSense/buntuanchorastralia/internal/gateway"
	"github.com/rs/zerolog/log"
)

// RailConfig names the anchor's side of the bank rail.
type RailConfig struct {
	TreasuryAccount string
	Currency        string
}

// SettleWithdrawalUseCase is the process-withdrawal-settlement hook: once the
// user's on-chain payment is confirmed, it executes the off-chain leg for
// bank withdrawals. Cash withdrawals are a no-op here; the pickup agent
// completes them.
type SettleWithdrawalUseCase struct {
	transactionRepository gateway.TransactionRepository
	payoutRepository      gateway.PayoutRepository
	rail                  gateway.BankRail
	eventPublisher        gateway.EventPublisher
	config                RailConfig

	Now func() time.Time
}

func NewSettleWithdrawal(
	txRepo gateway.TransactionRepository,
	payoutRepo gateway.PayoutRepository,
	rail gateway.BankRail,
	publisher gateway.EventPublisher,
	config RailConfig,
) *SettleWithdrawalUseCase {
	return &SettleWithdrawalUseCase{
		transactionRepository: txRepo,
		payoutRepository:      payoutRepo,
		rail:                  rail,
		eventPublisher:        publisher,
		config:                config,
		Now:                   time.Now,
	}
}

func (u *SettleWithdrawalUseCase) Execute(ctx context.Context, transactionID string) (domain.SettlementOutcome, error) {
	tx, err := u.transactionRepository.GetByID(ctx, transactionID)
	if err != nil {
		return domain.SettlementOutcome{}, err
	}
	if tx.Kind != domain.KindWithdrawal {
		return domain.SettlementOutcome{}, fmt.Errorf("transaction %s is not a withdrawal", tx.ID)
	}
	if tx.Status != domain.StatusPendingAnchor {
		return domain.SettlementOutcome{}, &domain.StaleStateError{
			TransactionID: tx.ID,
			Current:       tx.Status,
			Requested:     domain.StatusCompleted,
		}
	}

	// Cash withdrawals settle at the pickup counter.
	if _, err := u.payoutRepository.GetByTransactionID(ctx, tx.ID); err == nil {
		return domain.SettlementOutcome{Kind: domain.OutcomeSettled}, nil
	} else if err != domain.ErrPayoutNotFound {
		return domain.SettlementOutcome{}, err
	}

	if tx.ToAddress == "" {
		return u.fail(ctx, tx, "missing_bank_destination", domain.ErrMissingBankDestination.Error())
	}

	confirmation, err := u.rail.Transfer(ctx, gateway.TransferInstruction{
		FromAccountNumber: u.config.TreasuryAccount,
		ToAccountNumber:   tx.ToAddress,
		Amount:            tx.AmountOut.String(),
		Currency:          u.config.Currency,
		Description:       fmt.Sprintf("anchor_tx:%s", tx.ID),
	})
	if err != nil {
		// A timed-out or rejected rail call is a failed settlement attempt,
		// never left pending. The user's funds were already collected, so a
		// compensating refund is attempted once.
		outcome, failErr := u.fail(ctx, tx, "bank_payout", err.Error())
		if failErr != nil {
			return outcome, failErr
		}
		outcome.Refunded = u.Refund(ctx, tx)
		return outcome, nil
	}

	now := u.Now().UTC()
	err = u.transactionRepository.Transition(ctx, tx.ID,
		[]domain.Status{domain.StatusPendingAnchor},
		gateway.StatusTransition{
			To:          domain.StatusCompleted,
			CompletedAt: &now,
		})
	if err != nil {
		return domain.SettlementOutcome{}, err
	}

	ev := StatusEvent{
		TransactionID: tx.ID,
		Status:        "completed",
		Message:       "Withdrawal payout completed successfully",
	}
	if confirmation != nil {
		ev.BankResponse = confirmation.Raw
	}
	publishStatus(ctx, u.eventPublisher, ev)

	return domain.Settled(""), nil
}

func (u *SettleWithdrawalUseCase) fail(ctx context.Context, tx *domain.Transaction, stage, reason string) (domain.SettlementOutcome, error) {
	err := u.transactionRepository.Transition(ctx, tx.ID,
		[]domain.Status{tx.Status},
		gateway.StatusTransition{
			To:            domain.StatusError,
			StatusMessage: reason,
		})
	if err != nil {
		return domain.SettlementOutcome{}, err
	}

	log.Error().
		Str("transaction_id", tx.ID).
		Str("stage", stage).
		Str("reason", reason).
		Msg("withdrawal settlement failed")

	publishStatus(ctx, u.eventPublisher, StatusEvent{
		TransactionID: tx.ID,
		Status:        "failed",
		Stage:         stage,
		Reason:        reason,
		UserMessage:   domain.MsgNetworkFail,
	})
	return domain.FailedAt(stage, reason, domain.MsgNetworkFail), nil
}

// Refund issues the one-shot reverse transfer of amount_in to the user's
// bank destination. Best-effort: failures are logged, never retried
// automatically, never propagated.
func (u *SettleWithdrawalUseCase) Refund(ctx context.Context, tx *domain.Transaction) bool {
	if tx.ToAddress == "" {
		log.Error().Str("transaction_id", tx.ID).Msg("refund skipped: no bank destination on record")
		return false
	}
	err := u.rail.Refund(ctx, gateway.TransferInstruction{
		FromAccountNumber: u.config.TreasuryAccount,
		ToAccountNumber:   tx.ToAddress,
		Amount:            tx.AmountIn.String(),
		Currency:          u.config.Currency,
		Description:       fmt.Sprintf("refund_tx:%s", tx.ID),
	})
	if err != nil {
		log.Error().Err(err).Str("transaction_id", tx.ID).Msg("refund transfer failed")
		return false
	}
	return true
}
