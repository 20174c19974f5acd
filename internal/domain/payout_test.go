package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewPickupCodeShape(t *testing.T) {
	for i := 0; i < 1000; i++ {
		code := NewPickupCode()
		if len(code) != PickupCodeLength {
			t.Fatalf("code %q has length %d, want %d", code, len(code), PickupCodeLength)
		}
		for _, r := range code {
			if !strings.ContainsRune(PickupCodeAlphabet, r) {
				t.Fatalf("code %q contains %q, not in alphabet", code, r)
			}
		}
	}
}

func TestPickupCodeAlphabetExcludesConfusables(t *testing.T) {
	for _, bad := range "0O1I" {
		if strings.ContainsRune(PickupCodeAlphabet, bad) {
			t.Errorf("alphabet contains confusable symbol %q", bad)
		}
	}
	if len(PickupCodeAlphabet) != 32 {
		t.Errorf("alphabet size = %d, want 32", len(PickupCodeAlphabet))
	}
}

func TestNewPickupCodeDispersion(t *testing.T) {
	seen := make(map[string]bool, 10000)
	for i := 0; i < 10000; i++ {
		seen[NewPickupCode()] = true
	}
	// 10k draws from a 32^8 space should essentially never collide.
	if len(seen) < 9990 {
		t.Errorf("only %d distinct codes out of 10000 draws", len(seen))
	}
}

func TestValidateCompletion(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	paidAt := now.Add(-time.Hour)

	base := func() *CashPayout {
		return &CashPayout{
			PickupCode: "ABCD2345",
			ExpiresAt:  now.Add(time.Hour),
			Ready:      true,
		}
	}

	t.Run("valid", func(t *testing.T) {
		if err := base().ValidateCompletion("ABCD2345", now); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("wrong code", func(t *testing.T) {
		if err := base().ValidateCompletion("WRONGCOD", now); !errors.Is(err, ErrInvalidPickupCode) {
			t.Fatalf("got %v, want ErrInvalidPickupCode", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		p := base()
		p.ExpiresAt = now.Add(-time.Minute)
		if err := p.ValidateCompletion("ABCD2345", now); !errors.Is(err, ErrPickupCodeExpired) {
			t.Fatalf("got %v, want ErrPickupCodeExpired", err)
		}
	})

	t.Run("expiry boundary is exclusive", func(t *testing.T) {
		p := base()
		p.ExpiresAt = now
		if err := p.ValidateCompletion("ABCD2345", now); !errors.Is(err, ErrPickupCodeExpired) {
			t.Fatalf("got %v, want ErrPickupCodeExpired at the boundary", err)
		}
	})

	t.Run("not ready", func(t *testing.T) {
		p := base()
		p.Ready = false
		if err := p.ValidateCompletion("ABCD2345", now); !errors.Is(err, ErrPayoutNotReady) {
			t.Fatalf("got %v, want ErrPayoutNotReady", err)
		}
	})

	t.Run("already paid", func(t *testing.T) {
		p := base()
		p.PaidOutAt = &paidAt
		if err := p.ValidateCompletion("ABCD2345", now); !errors.Is(err, ErrPayoutAlreadyPaid) {
			t.Fatalf("got %v, want ErrPayoutAlreadyPaid", err)
		}
	})

	t.Run("wrong code wins over paid", func(t *testing.T) {
		p := base()
		p.PaidOutAt = &paidAt
		if err := p.ValidateCompletion("WRONGCOD", now); !errors.Is(err, ErrInvalidPickupCode) {
			t.Fatalf("got %v, want ErrInvalidPickupCode", err)
		}
	})
}
