package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/GrowthSense/buntuanchorastralia/internal/domain"
	"github.com/shopspring/decimal"
)

func newAgentDepositUC(txRepo *memTxRepo, ledger *fakeLedger, rail *fakeRail, agents *memAgentRepo) *AgentDepositUseCase {
	if agents == nil {
		agents = &memAgentRepo{agents: map[int64]*domain.Agent{}}
	}
	pub := &memPublisher{}
	settle := NewSettleWithdrawal(txRepo, newMemPayoutRepo(), rail, pub, RailConfig{
		TreasuryAccount: "TREASURY-1",
		Currency:        "AUD",
	})
	settle.Now = fixedClock()
	chain := NewDispatchChainPayout(txRepo, ledger, settle, pub)
	chain.Now = fixedClock()
	uc := NewAgentDeposit(txRepo, agents, chain, domain.Asset{Code: "AUDT", Decimals: 2})
	uc.Now = fixedClock()
	return uc
}

func TestAgentDepositSendsChainPayment(t *testing.T) {
	txRepo := newMemTxRepo()
	uc := newAgentDepositUC(txRepo, &fakeLedger{}, &fakeRail{}, nil)

	tx, outcome, err := uc.Execute(context.Background(), AgentDepositInput{
		Account: "GUSER",
		Amount:  decimal.RequireFromString("100.00"),
		AgentID: "7",
	})
	if !errors.Is(err, domain.ErrAgentNotFound) {
		t.Fatalf("unknown agent must be rejected, got %v", err)
	}
	_ = tx
	_ = outcome

	tx, outcome, err = uc.Execute(context.Background(), AgentDepositInput{
		Account: "GUSER",
		Amount:  decimal.RequireFromString("100.00"),
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome.Kind != domain.OutcomeSettled {
		t.Fatalf("outcome = %+v", outcome)
	}
	if tx.Kind != domain.KindDeposit || tx.FundingMethod != domain.FundingCash {
		t.Errorf("transaction = %+v", tx)
	}

	stored, _ := txRepo.GetByID(context.Background(), tx.ID)
	if stored.Status != domain.StatusCompleted {
		t.Errorf("status = %s, want completed", stored.Status)
	}
	if got := stored.AmountOut.String(); got != "98.5" {
		t.Errorf("amount_out = %s", got)
	}
}

func TestAgentDepositRecordsTooSmallAmount(t *testing.T) {
	txRepo := newMemTxRepo()
	uc := newAgentDepositUC(txRepo, &fakeLedger{}, &fakeRail{}, nil)

	_, _, err := uc.Execute(context.Background(), AgentDepositInput{
		Account: "GUSER",
		Amount:  decimal.RequireFromString("0.004"),
	})
	if !errors.Is(err, domain.ErrAmountTooSmall) {
		t.Fatalf("got %v, want ErrAmountTooSmall", err)
	}

	// The rejected attempt leaves an error record for the counter trail.
	txs, _ := txRepo.List(context.Background(), 10)
	if len(txs) != 1 || txs[0].Status != domain.StatusError {
		t.Fatalf("expected one error record, got %+v", txs)
	}
}

func TestAgentDepositUnderfundedClassification(t *testing.T) {
	txRepo := newMemTxRepo()
	ledger := &fakeLedger{send: func(*domain.Transaction) (string, error) {
		return "", domain.ErrLedgerUnderfunded
	}}
	rail := &fakeRail{}
	uc := newAgentDepositUC(txRepo, ledger, rail, nil)

	_, outcome, err := uc.Execute(context.Background(), AgentDepositInput{
		Account: "GUSER",
		Amount:  decimal.RequireFromString("100.00"),
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome.Kind != domain.OutcomeUnderfunded {
		t.Fatalf("outcome = %+v", outcome)
	}
}

func TestAgentDepositValidatesInput(t *testing.T) {
	uc := newAgentDepositUC(newMemTxRepo(), &fakeLedger{}, &fakeRail{}, nil)

	if _, _, err := uc.Execute(context.Background(), AgentDepositInput{Amount: decimal.RequireFromString("10")}); err == nil {
		t.Fatal("missing account must be rejected")
	}
	_, _, err := uc.Execute(context.Background(), AgentDepositInput{Account: "GUSER", Amount: decimal.Zero})
	if !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("got %v, want ErrInvalidAmount", err)
	}
}
