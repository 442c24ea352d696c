package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/ballot/internal/core/domain"
)

type ResultsCache interface {
	Get(ctx context.Context, pollID uuid.UUID) (*domain.Results, bool, error)
	Set(ctx context.Context, results *domain.Results) error
}

type TabulationService interface {
	Tabulate(ctx context.Context, caller domain.Caller, pollID uuid.UUID) (*domain.Results, error)
}
