package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/GrowthSense/buntuanchorastralia/internal/domain"
	"github.com/GrowthSense/buntuanchorastralia/internal/gateway"
)

const defaultListLimit = 50

// TransactionAdminUseCase backs the internal operations surface: inspect
// records, and force settlements forward or into a terminal error when a
// webhook or watcher event was lost.
type TransactionAdminUseCase struct {
	transactionRepository gateway.TransactionRepository
	chainPayout           *DispatchChainPayoutUseCase

	Now func() time.Time
}

func NewTransactionAdmin(txRepo gateway.TransactionRepository, chainPayout *DispatchChainPayoutUseCase) *TransactionAdminUseCase {
	return &TransactionAdminUseCase{
		transactionRepository: txRepo,
		chainPayout:           chainPayout,
		Now:                   time.Now,
	}
}

func (u *TransactionAdminUseCase) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	return u.transactionRepository.GetByID(ctx, id)
}

func (u *TransactionAdminUseCase) List(ctx context.Context) ([]*domain.Transaction, error) {
	return u.transactionRepository.List(ctx, defaultListLimit)
}

// ApproveDeposit confirms that the fiat leg of a deposit arrived and
// dispatches the on-chain payout to the user.
func (u *TransactionAdminUseCase) ApproveDeposit(ctx context.Context, id string) (domain.SettlementOutcome, error) {
	tx, err := u.transactionRepository.GetByID(ctx, id)
	if err != nil {
		return domain.SettlementOutcome{}, err
	}
	if tx.Kind != domain.KindDeposit {
		return domain.SettlementOutcome{}, fmt.Errorf("transaction %s is not a deposit", tx.ID)
	}
	return u.chainPayout.Execute(ctx, tx)
}

// ApproveWithdrawal marks a withdrawal disbursed outside the system, closing
// the record without a rail call.
func (u *TransactionAdminUseCase) ApproveWithdrawal(ctx context.Context, id string) (*domain.Transaction, error) {
	tx, err := u.transactionRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.Kind != domain.KindWithdrawal {
		return nil, fmt.Errorf("transaction %s is not a withdrawal", tx.ID)
	}
	now := u.Now().UTC()
	err = u.transactionRepository.Transition(ctx, tx.ID,
		domain.ActionableStatuses,
		gateway.StatusTransition{
			To:            domain.StatusCompleted,
			StatusMessage: "manually approved",
			CompletedAt:   &now,
		})
	if err != nil {
		return nil, err
	}
	tx.Status = domain.StatusCompleted
	tx.CompletedAt = &now
	return tx, nil
}

// Reject puts a non-terminal transaction into error with an operator-supplied
// reason.
func (u *TransactionAdminUseCase) Reject(ctx context.Context, id, reason string) (*domain.Transaction, error) {
	tx, err := u.transactionRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = "rejected by operator"
	}
	err = u.transactionRepository.Transition(ctx, tx.ID,
		domain.ActionableStatuses,
		gateway.StatusTransition{
			To:            domain.StatusError,
			StatusMessage: reason,
		})
	if err != nil {
		return nil, err
	}
	tx.Status = domain.StatusError
	tx.StatusMessage = reason
	return tx, nil
}
