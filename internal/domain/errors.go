package domain

import (
	"errors"
	"fmt"
)

var (
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrPayoutNotFound         = errors.New("payout not found")
	ErrAgentNotFound          = errors.New("agent not found")
	ErrInvalidAmount          = errors.New("amount must be greater than zero")
	ErrAmountTooSmall         = errors.New("amount is too small after fees")
	ErrInvalidPickupCode      = errors.New("invalid pickup code")
	ErrPickupCodeExpired      = errors.New("pickup code expired")
	ErrPayoutNotReady         = errors.New("payout not ready")
	ErrPayoutAlreadyReady     = errors.New("payout already approved")
	ErrPayoutAlreadyPaid      = errors.New("payout already paid out")
	ErrIdempotencyKeyRequired = errors.New("idempotency key required")
	ErrAmbiguousAgentID       = errors.New("agent_id must be an integer id or a valid UUID public id")
	ErrMissingBankDestination = errors.New("missing bank destination for withdrawal")
	ErrLedgerUnderfunded      = errors.New("anchor distribution account underfunded")
	ErrUnsupportedAsset       = errors.New("unsupported asset")
)

// StaleStateError signals that a status transition was requested from an
// unexpected current state. The record is never silently overwritten; the
// caller decides whether to retry against the fresh state.
type StaleStateError struct {
	TransactionID string
	Current       Status
	Requested     Status
}

func (e *StaleStateError) Error() string {
	return fmt.Sprintf("transaction %s: cannot transition to %q from %q", e.TransactionID, e.Requested, e.Current)
}

// IsStaleState reports whether err carries a StaleStateError.
func IsStaleState(err error) bool {
	var sse *StaleStateError
	return errors.As(err, &sse)
}
