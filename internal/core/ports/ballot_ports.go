package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/ballot/internal/core/domain"
)

type BallotRepository interface {
	// Insert stores the ballot and all of its selections atomically. It
	// returns domain.ErrAlreadyVoted when a ballot already exists for the
	// (poll, member) pair and domain.ErrPollNotOpen when the poll no longer
	// accepts ballots.
	Insert(ctx context.Context, ballot *domain.Ballot) error
	Exists(ctx context.Context, pollID, memberID uuid.UUID) (bool, error)
	Tally(ctx context.Context, pollID uuid.UUID, withVoters bool) (*domain.Tally, error)
}

type CastInput struct {
	Caller     domain.Caller
	PollID     uuid.UUID
	Answers    map[uuid.UUID]uuid.UUID
	Disclosure domain.Disclosure
}

type BallotService interface {
	Cast(ctx context.Context, input CastInput) (*domain.BallotReceipt, error)
}

type EligibilityService interface {
	Evaluate(ctx context.Context, caller domain.Caller, pollID uuid.UUID) (domain.Verdict, error)
}
