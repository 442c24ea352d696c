package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/ballot/internal/core/domain"
)

type PollRepository interface {
	Save(ctx context.Context, poll *domain.Poll) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Poll, error)
	ListOpen(ctx context.Context) ([]*domain.Poll, error)
	// MarkOpen moves a draft poll to open and, for closed join mode, captures
	// the eligibility snapshot in the same transaction.
	MarkOpen(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkClosed(ctx context.Context, id uuid.UUID, at time.Time) error
}

type PollService interface {
	GetPoll(ctx context.Context, id string) (*domain.Poll, error)
	Open(ctx context.Context, id uuid.UUID) (*domain.Poll, error)
	Close(ctx context.Context, id uuid.UUID) (*domain.Poll, error)
	CloseExpired(ctx context.Context) (int, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event domain.PollEvent) error
}

type Clock interface {
	Now() time.Time
}
