package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GrowthSense/buntuanchorastralia/internal/domain"
	"github.com/GrowthSense/buntuanchorastralia/internal/gateway"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const payoutColumns = `
	id, public_id::text, transaction_id, pickup_code,
	expires_at, ready, paid_out_at, paid_out_by, agent_id`

// liveCodeConstraint is the partial unique index enforcing pickup-code
// uniqueness among unpaid payouts.
const liveCodeConstraint = "idx_cash_payouts_live_code"

// PayoutRepository implements gateway.PayoutRepository on pgx/v5.
type PayoutRepository struct {
	db dbtx
}

func NewPayoutRepository(pool *pgxpool.Pool) *PayoutRepository {
	return &PayoutRepository{db: pool}
}

func (r *PayoutRepository) Create(ctx context.Context, p *domain.CashPayout) error {
	const query = `
		INSERT INTO cash_payouts (public_id, transaction_id, pickup_code, expires_at, ready, agent_id)
		VALUES ($1::uuid, $2, $3, $4, $5, $6)
		RETURNING id`
	err := r.db.QueryRow(ctx, query,
		p.PublicID.String(), p.TransactionID, p.PickupCode, p.ExpiresAt, p.Ready, p.AgentID,
	).Scan(&p.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == liveCodeConstraint {
			return gateway.ErrPickupCodeCollision
		}
		return fmt.Errorf("failed to insert cash payout: %w", err)
	}
	return nil
}

func (r *PayoutRepository) GetByTransactionID(ctx context.Context, txID string) (*domain.CashPayout, error) {
	query := `SELECT ` + payoutColumns + ` FROM cash_payouts WHERE transaction_id = $1`
	return r.one(ctx, query, txID)
}

func (r *PayoutRepository) GetByCode(ctx context.Context, pickupCode string) (*domain.CashPayout, error) {
	query := `SELECT ` + payoutColumns + ` FROM cash_payouts WHERE pickup_code = $1 AND paid_out_at IS NULL`
	return r.one(ctx, query, pickupCode)
}

func (r *PayoutRepository) GetAnyByCode(ctx context.Context, pickupCode string) (*domain.CashPayout, error) {
	query := `
		SELECT ` + payoutColumns + `
		FROM cash_payouts
		WHERE pickup_code = $1
		ORDER BY paid_out_at IS NULL DESC, id DESC
		LIMIT 1`
	return r.one(ctx, query, pickupCode)
}

func (r *PayoutRepository) ListReady(ctx context.Context, filter domain.AgentFilter) ([]*domain.CashPayout, error) {
	query := `
		SELECT ` + payoutColumns + `
		FROM cash_payouts
		WHERE ready AND paid_out_at IS NULL AND expires_at > now()
		  AND ($1::bigint IS NULL OR agent_id = $1)
		  AND ($2::uuid IS NULL OR agent_id = (SELECT id FROM agents WHERE public_id = $2::uuid))
		ORDER BY expires_at`
	agentID, publicID := filterArgs(filter)
	return r.many(ctx, query, agentID, publicID)
}

func (r *PayoutRepository) ListAll(ctx context.Context, filter domain.AgentFilter) ([]*domain.CashPayout, error) {
	query := `
		SELECT ` + payoutColumns + `
		FROM cash_payouts
		WHERE ($1::bigint IS NULL OR agent_id = $1)
		  AND ($2::uuid IS NULL OR agent_id = (SELECT id FROM agents WHERE public_id = $2::uuid))
		ORDER BY id DESC`
	agentID, publicID := filterArgs(filter)
	return r.many(ctx, query, agentID, publicID)
}

func (r *PayoutRepository) ListPending(ctx context.Context, now time.Time) ([]*domain.CashPayout, error) {
	const query = `
		SELECT
		p.id, p.public_id::text, p.transaction_id, p.pickup_code,
		p.expires_at, p.ready, p.paid_out_at, p.paid_out_by, p.agent_id
		FROM cash_payouts p
		JOIN transactions t ON t.id = p.transaction_id
		WHERE NOT p.ready AND p.paid_out_at IS NULL AND p.expires_at > $1
		  AND t.status = ANY($2)
		ORDER BY p.expires_at`
	return r.many(ctx, query, now, statusStrings(domain.ActionableStatuses))
}

func (r *PayoutRepository) MarkReady(ctx context.Context, payoutID int64) (bool, error) {
	const query = `
		UPDATE cash_payouts
		SET ready = TRUE
		WHERE id = $1 AND NOT ready AND paid_out_at IS NULL`
	tag, err := r.db.Exec(ctx, query, payoutID)
	if err != nil {
		return false, fmt.Errorf("failed to mark payout ready: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PayoutRepository) Complete(ctx context.Context, payoutID int64, paidAt time.Time, paidBy string) (bool, error) {
	const query = `
		UPDATE cash_payouts
		SET paid_out_at = $2, paid_out_by = $3
		WHERE id = $1 AND paid_out_at IS NULL`
	tag, err := r.db.Exec(ctx, query, payoutID, paidAt, paidBy)
	if err != nil {
		return false, fmt.Errorf("failed to complete payout: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// WithTx returns a copy of the repository bound to a specific transaction.
func (r *PayoutRepository) WithTx(tx gateway.TransactionObject) gateway.PayoutRepository {
	pgTx, ok := tx.(pgx.Tx)
	if !ok {
		return r
	}
	return &PayoutRepository{db: pgTx}
}

func (r *PayoutRepository) one(ctx context.Context, query string, args ...any) (*domain.CashPayout, error) {
	p, err := scanPayout(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPayoutNotFound
		}
		return nil, fmt.Errorf("failed to get cash payout: %w", err)
	}
	return p, nil
}

func (r *PayoutRepository) many(ctx context.Context, query string, args ...any) ([]*domain.CashPayout, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cash payouts: %w", err)
	}
	defer rows.Close()

	var out []*domain.CashPayout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cash payout: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPayout(row pgx.Row) (*domain.CashPayout, error) {
	var (
		p        domain.CashPayout
		publicID string
	)
	err := row.Scan(
		&p.ID, &publicID, &p.TransactionID, &p.PickupCode,
		&p.ExpiresAt, &p.Ready, &p.PaidOutAt, &p.PaidOutBy, &p.AgentID,
	)
	if err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(publicID)
	if err != nil {
		return nil, fmt.Errorf("invalid payout public_id %q: %w", publicID, err)
	}
	p.PublicID = parsed
	return &p, nil
}

func filterArgs(filter domain.AgentFilter) (agentID *int64, publicID *string) {
	if filter.ID != nil {
		agentID = filter.ID
	}
	if filter.PublicID != nil {
		s := filter.PublicID.String()
		publicID = &s
	}
	return agentID, publicID
}
