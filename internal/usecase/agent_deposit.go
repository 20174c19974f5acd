package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/GrowthSense/buntuanchorastralia/internal/domain"
	"github.com/GrowthSense/buntuanchorastralia/internal/gateway"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AgentDepositInput struct {
	Account string
	Amount  decimal.Decimal
	AgentID string
}

// AgentDepositUseCase records a cash deposit taken at an agent counter and
// immediately dispatches the on-chain leg: the user handed over fiat, the
// anchor owes them amount_out on the ledger.
type AgentDepositUseCase struct {
	transactionRepository gateway.TransactionRepository
	agentRepository       gateway.AgentRepository
	chainPayout           *DispatchChainPayoutUseCase
	asset                 domain.Asset

	Now func() time.Time
}

func NewAgentDeposit(
	txRepo gateway.TransactionRepository,
	agentRepo gateway.AgentRepository,
	chainPayout *DispatchChainPayoutUseCase,
	asset domain.Asset,
) *AgentDepositUseCase {
	return &AgentDepositUseCase{
		transactionRepository: txRepo,
		agentRepository:       agentRepo,
		chainPayout:           chainPayout,
		asset:                 asset,
		Now:                   time.Now,
	}
}

func (u *AgentDepositUseCase) Execute(ctx context.Context, input AgentDepositInput) (*domain.Transaction, domain.SettlementOutcome, error) {
	if input.Account == "" {
		return nil, domain.SettlementOutcome{}, fmt.Errorf("deposit account is required")
	}
	if !input.Amount.IsPositive() {
		return nil, domain.SettlementOutcome{}, domain.ErrInvalidAmount
	}

	if input.AgentID != "" {
		filter, err := domain.ParseAgentFilter(input.AgentID)
		if err != nil {
			return nil, domain.SettlementOutcome{}, err
		}
		if err := u.verifyAgent(ctx, filter); err != nil {
			return nil, domain.SettlementOutcome{}, err
		}
	}

	id := uuid.NewString()
	tx := &domain.Transaction{
		ID:                  id,
		Kind:                domain.KindDeposit,
		Status:              domain.StatusPendingAnchor,
		AmountIn:            input.Amount,
		Asset:               u.asset,
		Memo:                domain.MemoForTransaction(id),
		CounterpartyAccount: input.Account,
		ExternalAgentID:     input.AgentID,
		FundingMethod:       domain.FundingCash,
		StartedAt:           u.Now().UTC(),
	}
	if err := tx.ApplyFee(); err != nil {
		if err == domain.ErrAmountTooSmall {
			// Record the rejected attempt so the counter has a trail.
			tx.Status = domain.StatusError
			tx.StatusMessage = "amount too small to cover fees"
			if cerr := u.transactionRepository.Create(ctx, tx); cerr != nil {
				return nil, domain.SettlementOutcome{}, fmt.Errorf("record rejected deposit: %w", cerr)
			}
		}
		return nil, domain.SettlementOutcome{}, err
	}
	if err := u.transactionRepository.Create(ctx, tx); err != nil {
		return nil, domain.SettlementOutcome{}, fmt.Errorf("create agent deposit: %w", err)
	}

	outcome, err := u.chainPayout.Execute(ctx, tx)
	if err != nil {
		return tx, domain.SettlementOutcome{}, err
	}
	return tx, outcome, nil
}

func (u *AgentDepositUseCase) verifyAgent(ctx context.Context, filter domain.AgentFilter) error {
	var (
		agent *domain.Agent
		err   error
	)
	switch {
	case filter.ID != nil:
		agent, err = u.agentRepository.GetByID(ctx, *filter.ID)
	case filter.PublicID != nil:
		agent, err = u.agentRepository.GetByPublicID(ctx, *filter.PublicID)
	default:
		return nil
	}
	if err != nil {
		return err
	}
	if !agent.Active {
		return domain.ErrAgentNotFound
	}
	return nil
}
