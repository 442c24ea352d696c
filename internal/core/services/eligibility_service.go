package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/ballot/internal/core/domain"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
	"go.uber.org/zap"
)

type eligibilityService struct {
	polls        ports.PollRepository
	members      ports.MemberDirectory
	membership   ports.MembershipOracle
	snapshots    ports.SnapshotRepository
	ballots      ports.BallotRepository
	requirements domain.ProfileRequirements
	clock        ports.Clock
	l            *zap.Logger
}

type EligibilityDeps struct {
	Polls        ports.PollRepository
	Members      ports.MemberDirectory
	Membership   ports.MembershipOracle
	Snapshots    ports.SnapshotRepository
	Ballots      ports.BallotRepository
	Requirements domain.ProfileRequirements
	Clock        ports.Clock
}

func NewEligibilityService(deps EligibilityDeps, l *zap.Logger) ports.EligibilityService {
	clock := deps.Clock
	if clock == nil {
		clock = systemClock{}
	}
	return &eligibilityService{
		polls:        deps.Polls,
		members:      deps.Members,
		membership:   deps.Membership,
		snapshots:    deps.Snapshots,
		ballots:      deps.Ballots,
		requirements: deps.Requirements,
		clock:        clock,
		l:            l,
	}
}

// Evaluate runs the checks cheapest first and stops at the first failure,
// so the reported reason is deterministic. Only storage failures are
// returned as errors.
func (s *eligibilityService) Evaluate(ctx context.Context, caller domain.Caller, pollID uuid.UUID) (domain.Verdict, error) {
	poll, err := s.polls.GetByID(ctx, pollID)
	if err != nil {
		if errors.Is(err, domain.ErrPollNotFound) {
			return domain.Ineligible(domain.ReasonNotFound), nil
		}
		return domain.Verdict{}, err
	}
	return s.evaluate(ctx, caller, poll)
}

func (s *eligibilityService) evaluate(ctx context.Context, caller domain.Caller, poll *domain.Poll) (domain.Verdict, error) {
	switch poll.Status {
	case domain.PollStatusOpen:
	case domain.PollStatusDraft:
		return domain.Ineligible(domain.ReasonNotYetOpen), nil
	case domain.PollStatusClosed:
		return domain.Ineligible(domain.ReasonAlreadyClosed), nil
	default:
		return domain.Ineligible(domain.ReasonNotFound), nil
	}

	if reason, ok := poll.WindowReason(s.clock.Now()); !ok {
		return domain.Ineligible(reason), nil
	}

	if !caller.Authenticated() {
		return domain.Ineligible(domain.ReasonNotAuthenticated), nil
	}

	member, err := s.members.GetByID(ctx, caller.MemberID)
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("failed to get member: %w", err)
	}
	if member == nil {
		return domain.Ineligible(domain.ReasonNotAuthenticated), nil
	}

	if field, missing := s.requirements.FirstMissing(member); missing {
		return domain.Verdict{Reason: domain.ReasonIncompleteProfile, Field: field.Label}, nil
	}

	inGroup, err := s.inTargetPopulation(ctx, poll, member.ID)
	if err != nil {
		return domain.Verdict{}, err
	}
	if !inGroup {
		return domain.Ineligible(domain.ReasonNotInTargetGroup), nil
	}

	voted, err := s.ballots.Exists(ctx, poll.ID, member.ID)
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("failed to check existing ballot: %w", err)
	}
	if voted {
		return domain.Ineligible(domain.ReasonAlreadyVoted), nil
	}

	return domain.Eligible(), nil
}

// inTargetPopulation consults the frozen snapshot for closed join mode and
// live group membership otherwise.
func (s *eligibilityService) inTargetPopulation(ctx context.Context, poll *domain.Poll, memberID uuid.UUID) (bool, error) {
	if poll.JoinMode == domain.JoinModeClosed {
		ok, err := s.snapshots.Contains(ctx, poll.ID, memberID)
		if err != nil {
			return false, fmt.Errorf("failed to check eligibility snapshot: %w", err)
		}
		return ok, nil
	}
	if len(poll.TargetGroups) == 0 {
		return true, nil
	}
	ok, err := s.membership.IsMemberOfAny(ctx, memberID, poll.TargetGroups)
	if err != nil {
		return false, fmt.Errorf("failed to check group membership: %w", err)
	}
	return ok, nil
}
