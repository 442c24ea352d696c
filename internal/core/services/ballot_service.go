package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/ballot/internal/core/domain"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
	"github.com/vncsmyrnk/ballot/internal/metrics"
	"go.uber.org/zap"
)

type ballotService struct {
	polls       ports.PollRepository
	ballots     ports.BallotRepository
	eligibility ports.EligibilityService
	clock       ports.Clock
	metrics     *metrics.BallotMetrics
	l           *zap.Logger
}

func NewBallotService(
	polls ports.PollRepository,
	ballots ports.BallotRepository,
	eligibility ports.EligibilityService,
	clock ports.Clock,
	m *metrics.BallotMetrics,
	l *zap.Logger,
) ports.BallotService {
	if clock == nil {
		clock = systemClock{}
	}
	return &ballotService{
		polls:       polls,
		ballots:     ballots,
		eligibility: eligibility,
		clock:       clock,
		metrics:     m,
		l:           l,
	}
}

// Cast records one ballot for the caller. The eligibility re-check here is
// advisory; uniqueness and the open status are enforced again by the
// repository inside the write transaction.
func (s *ballotService) Cast(ctx context.Context, input ports.CastInput) (*domain.BallotReceipt, error) {
	started := time.Now()
	pollLabel := input.PollID.String()

	poll, err := s.polls.GetByID(ctx, input.PollID)
	if err != nil {
		if errors.Is(err, domain.ErrPollNotFound) {
			return nil, err
		}
		s.l.Error("failed to load poll", zap.Stringer("poll_id", input.PollID), zap.Error(err))
		return nil, fmt.Errorf("service: failed to load poll: %w", err)
	}

	if !input.Disclosure.Valid() {
		s.metrics.ObserveRejection(pollLabel, "malformed")
		return nil, fmt.Errorf("%w: unknown disclosure %q", domain.ErrMalformedBallot, input.Disclosure)
	}
	selections, err := selectionsFor(poll, input.Answers)
	if err != nil {
		s.metrics.ObserveRejection(pollLabel, "malformed")
		return nil, err
	}

	verdict, err := s.eligibility.Evaluate(ctx, input.Caller, poll.ID)
	if err != nil {
		s.l.Error("failed to evaluate eligibility", zap.Stringer("poll_id", poll.ID), zap.Error(err))
		return nil, fmt.Errorf("service: failed to evaluate eligibility: %w", err)
	}
	if !verdict.Eligible {
		s.metrics.ObserveRejection(pollLabel, string(verdict.Reason))
		if verdict.Reason == domain.ReasonNotFound {
			return nil, domain.ErrPollNotFound
		}
		return nil, verdict.Err()
	}

	now := s.clock.Now()
	if _, ok := poll.WindowReason(now); !ok || poll.Status != domain.PollStatusOpen {
		s.metrics.ObserveRejection(pollLabel, "poll_not_open")
		return nil, domain.ErrPollNotOpen
	}

	ballot := &domain.Ballot{
		ID:         uuid.New(),
		PollID:     poll.ID,
		MemberID:   input.Caller.MemberID,
		Disclosure: input.Disclosure,
		Selections: selections,
		CastAt:     now,
	}

	if err := s.ballots.Insert(ctx, ballot); err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadyVoted):
			s.l.Info("concurrent ballot lost the race",
				zap.Stringer("poll_id", poll.ID), zap.Stringer("member_id", ballot.MemberID))
			s.metrics.ObserveRejection(pollLabel, "already_voted_race")
			return nil, err
		case errors.Is(err, domain.ErrPollNotOpen):
			s.metrics.ObserveRejection(pollLabel, "poll_not_open")
			return nil, err
		default:
			s.l.Error("failed to insert ballot", zap.Stringer("poll_id", poll.ID), zap.Error(err))
			return nil, fmt.Errorf("service: failed to cast ballot: %w", err)
		}
	}

	s.metrics.ObserveCast(pollLabel, started)
	s.l.Debug("ballot cast", zap.Stringer("poll_id", poll.ID), zap.Stringer("ballot_id", ballot.ID))

	return ballot.Receipt(), nil
}

// selectionsFor checks that answers holds exactly one valid answer for every
// question of poll and nothing else, and returns them in question order.
func selectionsFor(poll *domain.Poll, answers map[uuid.UUID]uuid.UUID) ([]domain.Selection, error) {
	if len(answers) != len(poll.Questions) {
		return nil, fmt.Errorf("%w: expected %d answers, got %d", domain.ErrMalformedBallot, len(poll.Questions), len(answers))
	}

	selections := make([]domain.Selection, 0, len(poll.Questions))
	for _, q := range poll.Questions {
		answerID, ok := answers[q.ID]
		if !ok {
			return nil, fmt.Errorf("%w: question %s has no answer", domain.ErrMalformedBallot, q.ID)
		}
		if !q.HasAnswer(answerID) {
			return nil, fmt.Errorf("%w: answer %s does not belong to question %s", domain.ErrMalformedBallot, answerID, q.ID)
		}
		selections = append(selections, domain.Selection{QuestionID: q.ID, AnswerID: answerID})
	}
	return selections, nil
}
