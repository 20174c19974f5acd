package domain

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// PickupCodeAlphabet excludes visually confusable symbols (0/O, 1/I).
const PickupCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// PickupCodeLength is the number of symbols in a pickup code.
const PickupCodeLength = 8

// PayoutTTL is how long a pickup code stays valid after issuance.
const PayoutTTL = 24 * time.Hour

// NewPickupCode draws a code from the unambiguous alphabet using a CSPRNG.
// Uniqueness among live codes is enforced by the registry, which retries on
// collision.
func NewPickupCode() string {
	max := big.NewInt(int64(len(PickupCodeAlphabet)))
	buf := make([]byte, PickupCodeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err) // crypto/rand failure is not recoverable
		}
		buf[i] = PickupCodeAlphabet[n.Int64()]
	}
	return string(buf)
}

// CashPayout is the pickup-code record backing an agent cash withdrawal.
// One-to-one with its owning withdrawal Transaction.
type CashPayout struct {
	ID            int64
	PublicID      uuid.UUID
	TransactionID string

	PickupCode string
	ExpiresAt  time.Time

	// Ready flips false->true exactly once, by the ledger watcher or an
	// explicit approve action; never by the completion endpoint.
	Ready bool

	// PaidOutAt is terminal: once set, neither it nor Ready may change.
	PaidOutAt *time.Time
	PaidOutBy string

	AgentID *int64
}

func (p *CashPayout) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// ValidateCompletion checks the disbursement preconditions against the
// supplied code at time now. A payout that was already paid returns
// ErrPayoutAlreadyPaid so the caller can take the success-replay path.
func (p *CashPayout) ValidateCompletion(pickupCode string, now time.Time) error {
	if p.PickupCode != pickupCode {
		return ErrInvalidPickupCode
	}
	if p.Expired(now) {
		return ErrPickupCodeExpired
	}
	if !p.Ready {
		return ErrPayoutNotReady
	}
	if p.PaidOutAt != nil {
		return ErrPayoutAlreadyPaid
	}
	return nil
}
