package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
)

type Status string

const (
	StatusPendingUserTransferStart    Status = "pending_user_transfer_start"
	StatusBankTransferCompleted       Status = "bank_transfer_completed"
	StatusPendingUserTransferComplete Status = "pending_user_transfer_complete"
	StatusPendingAnchor               Status = "pending_anchor"
	StatusCompleted                   Status = "completed"
	StatusError                       Status = "error"
	StatusFailed                      Status = "failed"
)

// statusGraph lists the permitted forward edges. Terminal states have none.
var statusGraph = map[Status][]Status{
	StatusPendingUserTransferStart:    {StatusPendingAnchor, StatusBankTransferCompleted, StatusCompleted, StatusError, StatusFailed},
	StatusBankTransferCompleted:       {StatusPendingUserTransferComplete, StatusPendingAnchor, StatusCompleted, StatusError, StatusFailed},
	StatusPendingUserTransferComplete: {StatusPendingAnchor, StatusCompleted, StatusError, StatusFailed},
	StatusPendingAnchor:               {StatusCompleted, StatusError, StatusFailed},
	StatusCompleted:                   {},
	StatusError:                       {},
	StatusFailed:                      {},
}

// CanTransition reports whether moving from s to next follows the graph.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range statusGraph[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are permitted from s.
func (s Status) Terminal() bool {
	return len(statusGraph[s]) == 0
}

// Asset describes the tradable asset a transaction settles against.
type Asset struct {
	Code     string
	Issuer   string
	Decimals int32
}

type FundingMethod string

const (
	FundingBank   FundingMethod = "bank"
	FundingWallet FundingMethod = "wallet"
	FundingCash   FundingMethod = "cash"
)

// Transaction is the settlement record for a single deposit or withdrawal.
// It is created by the deposit/withdraw entry points and mutated only through
// state-guarded transitions; records are never deleted.
type Transaction struct {
	ID            string
	Kind          Kind
	Status        Status
	StatusMessage string

	AmountIn  decimal.Decimal
	AmountFee decimal.Decimal
	AmountOut decimal.Decimal
	Asset     Asset

	// Memo is the correlation token the watcher matches inbound ledger
	// payments against. Unique per in-flight transaction.
	Memo string

	// CounterpartyAccount is the user's ledger account; ToAddress the bank
	// destination for bank-rail withdrawals.
	CounterpartyAccount string
	ToAddress           string

	ExternalAgentID string
	FundingMethod   FundingMethod

	// LedgerTransactionRef is set once the on-chain leg is observed or sent.
	LedgerTransactionRef string
	ExternalTransactionRef string

	StartedAt   time.Time
	CompletedAt *time.Time
	UpdatedAt   time.Time
}

// Memo format is part of the wallet contract: wallets attach it verbatim to
// the on-chain payment so the watcher can match it back.
func MemoForTransaction(id string) string {
	return fmt.Sprintf("MEMO-%s", id)
}

// DefaultFeeRate is the flat anchor fee applied to amount_in.
var DefaultFeeRate = decimal.RequireFromString("0.015")

// CalculateFee returns the fee for amountIn rounded to the asset's decimals.
func CalculateFee(amountIn decimal.Decimal, asset Asset) decimal.Decimal {
	return amountIn.Mul(DefaultFeeRate).Round(asset.Decimals)
}

// ApplyFee sets amount_fee and amount_out on t from its amount_in. It fails
// before any side effect when the result would violate
// amount_out = amount_in - amount_fee > 0.
func (t *Transaction) ApplyFee() error {
	if !t.AmountIn.IsPositive() {
		return ErrInvalidAmount
	}
	t.AmountFee = CalculateFee(t.AmountIn, t.Asset)
	t.AmountOut = t.AmountIn.Sub(t.AmountFee).Round(t.Asset.Decimals)
	if !t.AmountOut.IsPositive() {
		return ErrAmountTooSmall
	}
	return nil
}

// ActionableStatuses are the non-terminal states a webhook or operator action
// may advance a transaction from.
var ActionableStatuses = []Status{
	StatusPendingUserTransferStart,
	StatusBankTransferCompleted,
	StatusPendingUserTransferComplete,
	StatusPendingAnchor,
}

// Actionable reports whether the transaction may still be advanced by a
// webhook or an operator action.
func (t *Transaction) Actionable() bool {
	for _, s := range ActionableStatuses {
		if t.Status == s {
			return true
		}
	}
	return false
}
