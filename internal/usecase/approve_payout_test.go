package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/GrowthSense/buntuanchorastralia/internal/domain"
)

func TestApproveFlipsReadyOnly(t *testing.T) {
	txRepo, payoutRepo := newMemTxRepo(), newMemPayoutRepo()
	tx, payout := seedCashWithdrawal(t, txRepo, payoutRepo, false)
	uc := NewApprovePayout(txRepo, payoutRepo)
	uc.Now = fixedClock()

	got, err := uc.Approve(context.Background(), payout.PickupCode)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if got.ID != tx.ID {
		t.Errorf("approved wrong transaction: %s", got.ID)
	}

	p, _ := payoutRepo.GetByTransactionID(context.Background(), tx.ID)
	if !p.Ready {
		t.Errorf("payout not flipped ready")
	}
	if p.PaidOutAt != nil {
		t.Errorf("approve must never disburse")
	}
	fresh, _ := txRepo.GetByID(context.Background(), tx.ID)
	if fresh.Status != domain.StatusPendingAnchor {
		t.Errorf("approve must not change transaction status, got %s", fresh.Status)
	}
}

func TestApproveAlreadyReadyIsConflict(t *testing.T) {
	txRepo, payoutRepo := newMemTxRepo(), newMemPayoutRepo()
	_, payout := seedCashWithdrawal(t, txRepo, payoutRepo, false)
	uc := NewApprovePayout(txRepo, payoutRepo)
	uc.Now = fixedClock()

	if _, err := uc.Approve(context.Background(), payout.PickupCode); err != nil {
		t.Fatalf("first Approve: %v", err)
	}
	_, err := uc.Approve(context.Background(), payout.PickupCode)
	if !errors.Is(err, domain.ErrPayoutAlreadyReady) {
		t.Fatalf("got %v, want ErrPayoutAlreadyReady", err)
	}
}

func TestApproveRequiresPendingAnchor(t *testing.T) {
	txRepo, payoutRepo := newMemTxRepo(), newMemPayoutRepo()
	tx, payout := seedCashWithdrawal(t, txRepo, payoutRepo, false)
	seedStatus(t, txRepo, tx.ID, domain.StatusPendingUserTransferStart)
	uc := NewApprovePayout(txRepo, payoutRepo)

	_, err := uc.Approve(context.Background(), payout.PickupCode)
	if !domain.IsStaleState(err) {
		t.Fatalf("got %v, want StaleStateError", err)
	}
}

func TestApproveUnknownCode(t *testing.T) {
	uc := NewApprovePayout(newMemTxRepo(), newMemPayoutRepo())
	if _, err := uc.Approve(context.Background(), "NOPE2345"); !errors.Is(err, domain.ErrPayoutNotFound) {
		t.Fatalf("got %v, want ErrPayoutNotFound", err)
	}
}

func TestMarkTransactionReady(t *testing.T) {
	txRepo, payoutRepo := newMemTxRepo(), newMemPayoutRepo()
	tx, payout := seedCashWithdrawal(t, txRepo, payoutRepo, false)
	seedStatus(t, txRepo, tx.ID, domain.StatusPendingUserTransferStart)
	uc := NewApprovePayout(txRepo, payoutRepo)

	result, err := uc.MarkTransactionReady(context.Background(), payout.PickupCode)
	if err != nil {
		t.Fatalf("MarkTransactionReady: %v", err)
	}
	if result.OldStatus != domain.StatusPendingUserTransferStart || result.NewStatus != domain.StatusPendingAnchor {
		t.Fatalf("result = %+v", result)
	}

	fresh, _ := txRepo.GetByID(context.Background(), tx.ID)
	if fresh.Status != domain.StatusPendingAnchor {
		t.Errorf("status = %s", fresh.Status)
	}

	// Already nudged: a second call is a state conflict, not a silent no-op.
	if _, err := uc.MarkTransactionReady(context.Background(), payout.PickupCode); !domain.IsStaleState(err) {
		t.Fatalf("got %v, want StaleStateError", err)
	}
}
