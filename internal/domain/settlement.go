package domain

// OutcomeKind classifies the result of a settlement attempt so callers can
// branch without inspecting error types.
type OutcomeKind string

const (
	OutcomeSettled     OutcomeKind = "settled"
	OutcomeFailed      OutcomeKind = "failed"
	OutcomeUnderfunded OutcomeKind = "underfunded"
)

// SettlementOutcome is the explicit result of a rails execution: settled,
// failed at a named stage, or underfunded (anchor liquidity exhausted after
// user funds were collected, compensated by refund).
type SettlementOutcome struct {
	Kind OutcomeKind

	// Stage names where a failure happened, e.g. "bank_payout" or
	// "chain_payout". Empty when settled.
	Stage string

	// Reason is the machine-readable cause persisted as status_message.
	Reason string

	// UserMessage is the human-readable translation surfaced downstream;
	// raw upstream error bodies never leave the anchor.
	UserMessage string

	// LedgerTransactionRef holds the on-chain hash for chain settlements.
	LedgerTransactionRef string

	// Refunded records whether the compensating refund was attempted.
	Refunded bool
}

func Settled(ref string) SettlementOutcome {
	return SettlementOutcome{Kind: OutcomeSettled, LedgerTransactionRef: ref}
}

func FailedAt(stage, reason, userMessage string) SettlementOutcome {
	return SettlementOutcome{Kind: OutcomeFailed, Stage: stage, Reason: reason, UserMessage: userMessage}
}

func Underfunded(stage string, refunded bool) SettlementOutcome {
	return SettlementOutcome{
		Kind:        OutcomeUnderfunded,
		Stage:       stage,
		Reason:      "ANCHOR_UNDERFUNDED",
		UserMessage: MsgUnderfunded,
		Refunded:    refunded,
	}
}

// User-visible failure translations. The small fixed set is deliberate.
const (
	MsgUnderfunded = "The anchor service temporarily had insufficient liquidity to complete your payout. Your funds have been refunded safely."
	MsgNetworkFail = "The payment could not be completed due to a network processing error. No funds were lost."
	MsgGenericFail = "The transaction failed due to a network error. No funds were deducted from your account."
)
