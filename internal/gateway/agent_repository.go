package gateway

import (
	"context"

	"github.com/GrowthSense/buntuanchorastralia/internal/domain"
	"github.com/google/uuid"
)

type AgentRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Agent, error)
	GetByPublicID(ctx context.Context, publicID uuid.UUID) (*domain.Agent, error)
	ListActive(ctx context.Context) ([]*domain.Agent, error)
}
