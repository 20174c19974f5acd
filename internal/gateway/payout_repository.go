package gateway

import (
	"context"
	"time"

	"github.com/GrowthSense/buntuanchorastralia/internal/domain"
)

// PayoutRepository owns CashPayout records. Create enforces pickup-code
// uniqueness among live codes via the storage unique constraint; callers
// retry with a fresh code on ErrPickupCodeCollision.
type PayoutRepository interface {
	Create(ctx context.Context, p *domain.CashPayout) error
	GetByTransactionID(ctx context.Context, txID string) (*domain.CashPayout, error)

	// GetByCode ignores already-paid payouts (NotFound), matching lookup
	// semantics.
	GetByCode(ctx context.Context, pickupCode string) (*domain.CashPayout, error)

	// GetAnyByCode also returns paid payouts, for the approve path.
	GetAnyByCode(ctx context.Context, pickupCode string) (*domain.CashPayout, error)

	ListReady(ctx context.Context, filter domain.AgentFilter) ([]*domain.CashPayout, error)
	ListAll(ctx context.Context, filter domain.AgentFilter) ([]*domain.CashPayout, error)

	// ListPending returns unready, unexpired payouts whose transactions are
	// still in flight, ordered by expiry.
	ListPending(ctx context.Context, now time.Time) ([]*domain.CashPayout, error)

	// MarkReady flips ready false->true. Compare-and-set: returns false when
	// the payout was already ready (or paid), which callers treat as a no-op.
	MarkReady(ctx context.Context, payoutID int64) (bool, error)

	// Complete sets paid_out_at/paid_out_by iff paid_out_at is still null.
	// Returns false when a concurrent completion won; the caller falls back
	// to the replay path.
	Complete(ctx context.Context, payoutID int64, paidAt time.Time, paidBy string) (bool, error)

	WithTx(tx TransactionObject) PayoutRepository
}

// ErrPickupCodeCollision is surfaced by Create when the generated code
// collides with a live one.
type pickupCodeCollision struct{}

func (pickupCodeCollision) Error() string { return "pickup code collision" }

var ErrPickupCodeCollision error = pickupCodeCollision{}
