package gateway

import (
	"context"

	"github.com/GrowthSense/buntuanchorastralia/internal/domain"
)

// TransferInstruction is the bank-rail payload for an outbound settlement or
// a compensating refund.
type TransferInstruction struct {
	FromAccountNumber string `json:"fromAccountNumber"`
	ToAccountNumber   string `json:"toAccountNumber"`
	Amount            string `json:"amount"`
	Currency          string `json:"currency"`
	Description       string `json:"description"`
}

// TransferConfirmation carries the rail's raw confirmation payload forwarded
// to the downstream consumer on success.
type TransferConfirmation struct {
	Raw map[string]interface{}
}

// BankRail performs the off-chain settlement leg. Transfer is synchronous and
// bound to 10s; Refund is the one-shot compensation, bound to 8s, never
// retried automatically.
type BankRail interface {
	Transfer(ctx context.Context, in TransferInstruction) (*TransferConfirmation, error)
	Refund(ctx context.Context, in TransferInstruction) error
}

// LedgerGateway submits the on-chain leg. SendPayment pays amount_out of the
// transaction's asset to its counterparty account; an insufficient-balance
// class of failure is reported as domain.ErrLedgerUnderfunded (wrapped).
type LedgerGateway interface {
	// ReceiveAccount is the anchor account users pay for withdrawals.
	ReceiveAccount() string

	SendPayment(ctx context.Context, tx *domain.Transaction) (hash string, err error)
}
