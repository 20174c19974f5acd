package usecase

import (
	"context"
	"strings"

	"github.com/GrowthSense/buntuanchorastralia/internal/domain"
	"github.com/GrowthSense/buntuanchorastralia/internal/gateway"
	"github.com/rs/zerolog/log"
)

// Rail event directions as declared by the banking provider.
const (
	DirectionUserToAnchor = "USER_TO_ANCHOR"
	DirectionAnchorToUser = "ANCHOR_TO_USER"
)

const railDescriptionPrefix = "anchor_tx:"

// ParseRailCorrelation extracts the transaction id embedded in a rail event
// description. Empty result means the event is not ours.
func ParseRailCorrelation(description string) string {
	if !strings.HasPrefix(description, railDescriptionPrefix) {
		return ""
	}
	return strings.TrimPrefix(description, railDescriptionPrefix)
}

type RailEventInput struct {
	TransactionID string
	Direction     string
	ExternalRef   string
}

// ProcessRailEventUseCase applies a verified bank-rail callback to the
// settlement state. Signature verification happens before this layer.
type ProcessRailEventUseCase struct {
	transactionRepository gateway.TransactionRepository
	chainPayout           *DispatchChainPayoutUseCase
	settleWithdrawal      *SettleWithdrawalUseCase
}

func NewProcessRailEvent(
	txRepo gateway.TransactionRepository,
	chainPayout *DispatchChainPayoutUseCase,
	settleWithdrawal *SettleWithdrawalUseCase,
) *ProcessRailEventUseCase {
	return &ProcessRailEventUseCase{
		transactionRepository: txRepo,
		chainPayout:           chainPayout,
		settleWithdrawal:      settleWithdrawal,
	}
}

func (u *ProcessRailEventUseCase) Execute(ctx context.Context, input RailEventInput) (domain.SettlementOutcome, error) {
	tx, err := u.transactionRepository.GetByID(ctx, input.TransactionID)
	if err != nil {
		return domain.SettlementOutcome{}, err
	}
	if !tx.Actionable() {
		return domain.SettlementOutcome{}, &domain.StaleStateError{
			TransactionID: tx.ID,
			Current:       tx.Status,
			Requested:     domain.StatusCompleted,
		}
	}

	switch input.Direction {
	case DirectionUserToAnchor:
		// Fiat arrived at the anchor. Record the acknowledgment; the on-chain
		// leg is dispatched by a follow-up event or operator approval.
		err := u.transactionRepository.Transition(ctx, tx.ID,
			[]domain.Status{domain.StatusPendingUserTransferStart},
			gateway.StatusTransition{
				To:                     domain.StatusBankTransferCompleted,
				ExternalTransactionRef: input.ExternalRef,
			})
		if err != nil {
			return domain.SettlementOutcome{}, err
		}
		return domain.SettlementOutcome{Kind: domain.OutcomeSettled}, nil

	case DirectionAnchorToUser:
		return u.chainPayout.Execute(ctx, tx)

	default:
		// Legacy events carry no direction; fall back on the record's kind.
		log.Warn().
			Str("transaction_id", tx.ID).
			Str("direction", input.Direction).
			Msg("rail event without a recognized direction")
		if tx.Kind == domain.KindDeposit {
			return u.chainPayout.Execute(ctx, tx)
		}
		return u.settleWithdrawal.Execute(ctx, tx.ID)
	}
}
