package gateway

import (
	"context"
	"time"

	"github.com/GrowthSense/buntuanchorastralia/internal/domain"
)

// StatusTransition is the full field set persisted together with a status
// change. A transition either commits all of it or none of it.
type StatusTransition struct {
	To            domain.Status
	StatusMessage string

	// Optional refs written alongside the status change.
	LedgerTransactionRef   string
	ExternalTransactionRef string

	CompletedAt *time.Time
}

// TransactionRepository is the source of truth for settlement records. All
// status mutations are compare-and-set against the expected current states;
// a mismatch yields *domain.StaleStateError.
type TransactionRepository interface {
	Create(ctx context.Context, tx *domain.Transaction) error
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)

	// GetPendingWithdrawalByMemo resolves the single in-flight withdrawal
	// whose memo matches, for the ledger watcher.
	GetPendingWithdrawalByMemo(ctx context.Context, memo string) (*domain.Transaction, error)

	// Transition moves the record to t.To iff its current status is one of
	// from, persisting t's derived fields in the same write.
	Transition(ctx context.Context, id string, from []domain.Status, t StatusTransition) error

	// UpdateAmounts persists amount_fee/amount_out and the bank destination
	// computed during a withdraw/deposit request.
	UpdateAmounts(ctx context.Context, tx *domain.Transaction) error

	List(ctx context.Context, limit int) ([]*domain.Transaction, error)

	WithTx(tx TransactionObject) TransactionRepository
}
