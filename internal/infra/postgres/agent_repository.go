package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/GrowthSense/buntuanchorastralia/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const agentColumns = `id, public_id::text, name, location, hours, active`

// AgentRepository implements gateway.AgentRepository on pgx/v5.
type AgentRepository struct {
	db dbtx
}

func NewAgentRepository(pool *pgxpool.Pool) *AgentRepository {
	return &AgentRepository{db: pool}
}

func (r *AgentRepository) GetByID(ctx context.Context, id int64) (*domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE id = $1`
	return r.one(ctx, query, id)
}

func (r *AgentRepository) GetByPublicID(ctx context.Context, publicID uuid.UUID) (*domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE public_id = $1::uuid`
	return r.one(ctx, query, publicID.String())
}

func (r *AgentRepository) ListActive(ctx context.Context) ([]*domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE active ORDER BY name`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	var out []*domain.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		out = append(out, agent)
	}
	return out, rows.Err()
}

func (r *AgentRepository) one(ctx context.Context, query string, args ...any) (*domain.Agent, error) {
	agent, err := scanAgent(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAgentNotFound
		}
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return agent, nil
}

func scanAgent(row pgx.Row) (*domain.Agent, error) {
	var (
		a        domain.Agent
		publicID string
	)
	if err := row.Scan(&a.ID, &publicID, &a.Name, &a.Location, &a.Hours, &a.Active); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(publicID)
	if err != nil {
		return nil, fmt.Errorf("invalid agent public_id %q: %w", publicID, err)
	}
	a.PublicID = parsed
	return &a, nil
}
