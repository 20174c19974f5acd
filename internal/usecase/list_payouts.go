package usecase

import (
	"context"
	"time"

	"github.com/GrowthSense/buntuanchorastralia/internal/domain"
	"github.com/GrowthSense/buntuanchorastralia/internal/gateway"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// PayoutView is a payout joined with its owning transaction, the shape agent
// tooling consumes.
type PayoutView struct {
	PayoutID      string          `json:"payout_id"`
	TransactionID string          `json:"transaction_id"`
	PickupCode    string          `json:"pickup_code"`
	AmountOut     decimal.Decimal `json:"amount_out"`
	AssetCode     string          `json:"asset_code"`
	Status        domain.Status   `json:"status"`
	Ready         bool            `json:"ready"`
	ExpiresAt     time.Time       `json:"expires_at"`
	PaidOutAt     *time.Time      `json:"paid_out_at,omitempty"`
	PaidOutBy     string          `json:"paid_out_by,omitempty"`
	AgentID       *int64          `json:"agent_id,omitempty"`
}

// ListPayoutsUseCase serves the agent-facing read side: ready queues, full
// history, pending (awaiting funds) queues, and single-code lookup.
type ListPayoutsUseCase struct {
	transactionRepository gateway.TransactionRepository
	payoutRepository      gateway.PayoutRepository
	agentRepository       gateway.AgentRepository

	Now func() time.Time
}

func NewListPayouts(
	txRepo gateway.TransactionRepository,
	payoutRepo gateway.PayoutRepository,
	agentRepo gateway.AgentRepository,
) *ListPayoutsUseCase {
	return &ListPayoutsUseCase{
		transactionRepository: txRepo,
		payoutRepository:      payoutRepo,
		agentRepository:       agentRepo,
		Now:                   time.Now,
	}
}

// Ready lists payouts an agent may disburse right now: funded, unexpired,
// unpaid, optionally scoped to one agent.
func (u *ListPayoutsUseCase) Ready(ctx context.Context, rawAgentID string) ([]*PayoutView, error) {
	filter, err := domain.ParseAgentFilter(rawAgentID)
	if err != nil {
		return nil, err
	}
	payouts, err := u.payoutRepository.ListReady(ctx, filter)
	if err != nil {
		return nil, err
	}
	return u.project(ctx, payouts), nil
}

// All lists every payout for the agent scope, paid and expired included.
func (u *ListPayoutsUseCase) All(ctx context.Context, rawAgentID string) ([]*PayoutView, error) {
	filter, err := domain.ParseAgentFilter(rawAgentID)
	if err != nil {
		return nil, err
	}
	payouts, err := u.payoutRepository.ListAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	return u.project(ctx, payouts), nil
}

// Pending lists payouts still waiting on the user's on-chain payment.
func (u *ListPayoutsUseCase) Pending(ctx context.Context) ([]*PayoutView, error) {
	payouts, err := u.payoutRepository.ListPending(ctx, u.Now().UTC())
	if err != nil {
		return nil, err
	}
	return u.project(ctx, payouts), nil
}

// Lookup resolves one unpaid payout by pickup code, for the agent's counter
// check before handing over cash.
func (u *ListPayoutsUseCase) Lookup(ctx context.Context, pickupCode string) (*PayoutView, error) {
	payout, err := u.payoutRepository.GetByCode(ctx, pickupCode)
	if err != nil {
		return nil, err
	}
	if payout.Expired(u.Now().UTC()) {
		return nil, domain.ErrPickupCodeExpired
	}
	view, err := u.view(ctx, payout)
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Agents lists active pickup locations.
func (u *ListPayoutsUseCase) Agents(ctx context.Context) ([]*domain.Agent, error) {
	return u.agentRepository.ListActive(ctx)
}

func (u *ListPayoutsUseCase) project(ctx context.Context, payouts []*domain.CashPayout) []*PayoutView {
	views := make([]*PayoutView, 0, len(payouts))
	for _, p := range payouts {
		view, err := u.view(ctx, p)
		if err != nil {
			// A payout without its transaction is a data defect; skip it
			// rather than failing the whole listing.
			log.Error().Err(err).Str("transaction_id", p.TransactionID).Msg("orphaned payout in listing")
			continue
		}
		views = append(views, view)
	}
	return views
}

func (u *ListPayoutsUseCase) view(ctx context.Context, p *domain.CashPayout) (*PayoutView, error) {
	tx, err := u.transactionRepository.GetByID(ctx, p.TransactionID)
	if err != nil {
		return nil, err
	}
	return &PayoutView{
		PayoutID:      p.PublicID.String(),
		TransactionID: tx.ID,
		PickupCode:    p.PickupCode,
		AmountOut:     tx.AmountOut,
		AssetCode:     tx.Asset.Code,
		Status:        tx.Status,
		Ready:         p.Ready,
		ExpiresAt:     p.ExpiresAt,
		PaidOutAt:     p.PaidOutAt,
		PaidOutBy:     p.PaidOutBy,
		AgentID:       p.AgentID,
	}, nil
}
