package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/ballot/internal/core/domain"
)

type MemberDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Member, error)
}

type MembershipOracle interface {
	IsMemberOfAny(ctx context.Context, memberID uuid.UUID, groups []uuid.UUID) (bool, error)
	// CountMembers counts members of any of groups, or all members when
	// groups is empty.
	CountMembers(ctx context.Context, groups []uuid.UUID) (int64, error)
}

type SnapshotRepository interface {
	Contains(ctx context.Context, pollID, memberID uuid.UUID) (bool, error)
	Size(ctx context.Context, pollID uuid.UUID) (int64, error)
}
