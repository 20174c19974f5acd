package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GrowthSense/buntuanchorastralia/internal/domain"
	"github.com/GrowthSense/buntuanchorastralia/internal/gateway"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const transactionColumns = `
	id, kind, status, status_message,
	amount_in::text, amount_fee::text, amount_out::text,
	asset_code, asset_issuer, asset_decimals,
	memo, counterparty_account, to_address,
	external_agent_id, funding_method,
	ledger_transaction_ref, external_transaction_ref,
	started_at, completed_at, updated_at`

// TransactionRepository implements gateway.TransactionRepository on pgx/v5.
type TransactionRepository struct {
	db dbtx
}

func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{db: pool}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	const query = `
		INSERT INTO transactions (
			id, kind, status, status_message,
			amount_in, amount_fee, amount_out,
			asset_code, asset_issuer, asset_decimals,
			memo, counterparty_account, to_address,
			external_agent_id, funding_method,
			started_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5::numeric, $6::numeric, $7::numeric,
			$8, $9, $10,
			$11, $12, $13,
			$14, $15,
			$16, $16
		)`
	_, err := r.db.Exec(ctx, query,
		tx.ID, string(tx.Kind), string(tx.Status), tx.StatusMessage,
		tx.AmountIn.String(), tx.AmountFee.String(), tx.AmountOut.String(),
		tx.Asset.Code, tx.Asset.Issuer, tx.Asset.Decimals,
		tx.Memo, tx.CounterpartyAccount, tx.ToAddress,
		tx.ExternalAgentID, string(tx.FundingMethod),
		tx.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	tx, err := scanTransaction(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

func (r *TransactionRepository) GetPendingWithdrawalByMemo(ctx context.Context, memo string) (*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE memo = $1 AND kind = $2 AND status = ANY($3)
		ORDER BY started_at
		LIMIT 1`
	tx, err := scanTransaction(r.db.QueryRow(ctx, query,
		memo, string(domain.KindWithdrawal), statusStrings(domain.ActionableStatuses)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get withdrawal by memo: %w", err)
	}
	return tx, nil
}

func (r *TransactionRepository) Transition(ctx context.Context, id string, from []domain.Status, t gateway.StatusTransition) error {
	const query = `
		UPDATE transactions
		SET status = $2,
		    status_message = CASE WHEN $3 <> '' THEN $3 ELSE status_message END,
		    ledger_transaction_ref = CASE WHEN $4 <> '' THEN $4 ELSE ledger_transaction_ref END,
		    external_transaction_ref = CASE WHEN $5 <> '' THEN $5 ELSE external_transaction_ref END,
		    completed_at = COALESCE($6, completed_at),
		    updated_at = now()
		WHERE id = $1 AND status = ANY($7)`
	tag, err := r.db.Exec(ctx, query,
		id, string(t.To), t.StatusMessage,
		t.LedgerTransactionRef, t.ExternalTransactionRef,
		t.CompletedAt, statusStrings(from),
	)
	if err != nil {
		return fmt.Errorf("failed to transition transaction: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Zero rows: either the record is gone or its state moved underneath us.
	var current string
	err = r.db.QueryRow(ctx, `SELECT status FROM transactions WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrTransactionNotFound
		}
		return fmt.Errorf("failed to read transaction status: %w", err)
	}
	return &domain.StaleStateError{
		TransactionID: id,
		Current:       domain.Status(current),
		Requested:     t.To,
	}
}

func (r *TransactionRepository) UpdateAmounts(ctx context.Context, tx *domain.Transaction) error {
	const query = `
		UPDATE transactions
		SET amount_fee = $2::numeric,
		    amount_out = $3::numeric,
		    to_address = $4,
		    external_agent_id = $5,
		    updated_at = now()
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, query,
		tx.ID, tx.AmountFee.String(), tx.AmountOut.String(), tx.ToAddress, tx.ExternalAgentID)
	if err != nil {
		return fmt.Errorf("failed to update transaction amounts: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

func (r *TransactionRepository) List(ctx context.Context, limit int) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		ORDER BY started_at DESC
		LIMIT $1`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// WithTx returns a copy of the repository bound to a specific transaction.
func (r *TransactionRepository) WithTx(tx gateway.TransactionObject) gateway.TransactionRepository {
	pgTx, ok := tx.(pgx.Tx)
	if !ok {
		return r
	}
	return &TransactionRepository{db: pgTx}
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		tx                               domain.Transaction
		kind, status, fundingMethod      string
		amountIn, amountFee, amountOut   string
		startedAt, updatedAt             time.Time
		completedAt                      *time.Time
	)
	err := row.Scan(
		&tx.ID, &kind, &status, &tx.StatusMessage,
		&amountIn, &amountFee, &amountOut,
		&tx.Asset.Code, &tx.Asset.Issuer, &tx.Asset.Decimals,
		&tx.Memo, &tx.CounterpartyAccount, &tx.ToAddress,
		&tx.ExternalAgentID, &fundingMethod,
		&tx.LedgerTransactionRef, &tx.ExternalTransactionRef,
		&startedAt, &completedAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	tx.Kind = domain.Kind(kind)
	tx.Status = domain.Status(status)
	tx.FundingMethod = domain.FundingMethod(fundingMethod)
	tx.AmountIn, err = decimal.NewFromString(amountIn)
	if err != nil {
		return nil, fmt.Errorf("invalid amount_in %q: %w", amountIn, err)
	}
	tx.AmountFee, err = decimal.NewFromString(amountFee)
	if err != nil {
		return nil, fmt.Errorf("invalid amount_fee %q: %w", amountFee, err)
	}
	tx.AmountOut, err = decimal.NewFromString(amountOut)
	if err != nil {
		return nil, fmt.Errorf("invalid amount_out %q: %w", amountOut, err)
	}
	tx.StartedAt = startedAt
	tx.CompletedAt = completedAt
	tx.UpdatedAt = updatedAt
	return &tx, nil
}

func statusStrings(statuses []domain.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
