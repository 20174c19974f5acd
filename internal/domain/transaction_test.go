package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestStatusGraphForwardOnly(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPendingUserTransferStart, StatusPendingAnchor, true},
		{StatusPendingUserTransferStart, StatusBankTransferCompleted, true},
		{StatusBankTransferCompleted, StatusPendingUserTransferComplete, true},
		{StatusBankTransferCompleted, StatusCompleted, true},
		{StatusPendingAnchor, StatusCompleted, true},
		{StatusPendingAnchor, StatusError, true},
		{StatusPendingAnchor, StatusFailed, true},
		{StatusCompleted, StatusPendingAnchor, false},
		{StatusCompleted, StatusError, false},
		{StatusError, StatusCompleted, false},
		{StatusFailed, StatusPendingAnchor, false},
		{StatusPendingAnchor, StatusPendingUserTransferStart, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.ok {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusError, StatusFailed} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range ActionableStatuses {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestApplyFee(t *testing.T) {
	tx := &Transaction{
		AmountIn: decimal.RequireFromString("100.00"),
		Asset:    Asset{Code: "AUDT", Decimals: 2},
	}
	if err := tx.ApplyFee(); err != nil {
		t.Fatalf("ApplyFee: %v", err)
	}
	if got := tx.AmountFee.String(); got != "1.5" {
		t.Errorf("fee = %s, want 1.5", got)
	}
	if got := tx.AmountOut.String(); got != "98.5" {
		t.Errorf("amount_out = %s, want 98.5", got)
	}
	// amount_out = amount_in - amount_fee must hold exactly.
	if !tx.AmountIn.Sub(tx.AmountFee).Equal(tx.AmountOut) {
		t.Errorf("amount identity violated: %s - %s != %s", tx.AmountIn, tx.AmountFee, tx.AmountOut)
	}
}

func TestApplyFeeRejectsNonPositive(t *testing.T) {
	for _, raw := range []string{"0", "-5"} {
		tx := &Transaction{
			AmountIn: decimal.RequireFromString(raw),
			Asset:    Asset{Code: "AUDT", Decimals: 2},
		}
		if err := tx.ApplyFee(); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("ApplyFee(%s) = %v, want ErrInvalidAmount", raw, err)
		}
	}
}

func TestApplyFeeRejectsDustAmount(t *testing.T) {
	// A sub-cent amount rounds to a zero payout at 2 asset decimals.
	tx := &Transaction{
		AmountIn: decimal.RequireFromString("0.004"),
		Asset:    Asset{Code: "AUDT", Decimals: 2},
	}
	err := tx.ApplyFee()
	if !errors.Is(err, ErrAmountTooSmall) {
		t.Fatalf("ApplyFee(0.004) = %v, want ErrAmountTooSmall", err)
	}
}

func TestApplyFeeIdentityHoldsAcrossAmounts(t *testing.T) {
	amounts := []string{"0.67", "1.00", "9.99", "100.00", "12345.67", "0.99"}
	for _, raw := range amounts {
		tx := &Transaction{
			AmountIn: decimal.RequireFromString(raw),
			Asset:    Asset{Code: "AUDT", Decimals: 2},
		}
		if err := tx.ApplyFee(); err != nil {
			t.Fatalf("ApplyFee(%s): %v", raw, err)
		}
		if !tx.AmountIn.Sub(tx.AmountFee).Equal(tx.AmountOut) {
			t.Errorf("identity violated for %s: out=%s fee=%s", raw, tx.AmountOut, tx.AmountFee)
		}
		if !tx.AmountOut.IsPositive() {
			t.Errorf("amount_out for %s is not positive: %s", raw, tx.AmountOut)
		}
	}
}

func TestMemoForTransaction(t *testing.T) {
	if got := MemoForTransaction("abc-123"); got != "MEMO-abc-123" {
		t.Errorf("MemoForTransaction = %q", got)
	}
}
