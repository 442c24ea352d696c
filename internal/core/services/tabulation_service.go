package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/ballot/internal/core/domain"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
	"github.com/vncsmyrnk/ballot/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type tabulationService struct {
	polls      ports.PollRepository
	ballots    ports.BallotRepository
	membership ports.MembershipOracle
	snapshots  ports.SnapshotRepository
	cache      ports.ResultsCache
	metrics    *metrics.BallotMetrics
	l          *zap.Logger
}

type TabulationDeps struct {
	Polls      ports.PollRepository
	Ballots    ports.BallotRepository
	Membership ports.MembershipOracle
	Snapshots  ports.SnapshotRepository
	// Cache is optional. When set, final results of closed polls are kept in it.
	Cache   ports.ResultsCache
	Metrics *metrics.BallotMetrics
}

func NewTabulationService(deps TabulationDeps, l *zap.Logger) ports.TabulationService {
	return &tabulationService{
		polls:      deps.Polls,
		ballots:    deps.Ballots,
		membership: deps.Membership,
		snapshots:  deps.Snapshots,
		cache:      deps.Cache,
		metrics:    deps.Metrics,
		l:          l,
	}
}

func (s *tabulationService) Tabulate(ctx context.Context, caller domain.Caller, pollID uuid.UUID) (*domain.Results, error) {
	started := time.Now()

	poll, err := s.polls.GetByID(ctx, pollID)
	if err != nil {
		if errors.Is(err, domain.ErrPollNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service: failed to load poll: %w", err)
	}
	if poll.Status == domain.PollStatusDraft {
		return nil, domain.ErrResultsUnavailable
	}

	final := poll.Status == domain.PollStatusClosed
	if final && s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, poll.ID)
		if err != nil {
			s.l.Warn("failed to read results cache", zap.Stringer("poll_id", poll.ID), zap.Error(err))
		} else if ok {
			return visibleTo(caller, cached), nil
		}
	}

	var (
		tally    *domain.Tally
		eligible int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tally, err = s.ballots.Tally(gctx, poll.ID, poll.VoteMode == domain.VoteModePublic)
		if err != nil {
			return fmt.Errorf("failed to tally ballots: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		eligible, err = s.eligiblePopulation(gctx, poll)
		return err
	})
	if err := g.Wait(); err != nil {
		s.l.Error("failed to tabulate poll", zap.Stringer("poll_id", poll.ID), zap.Error(err))
		return nil, fmt.Errorf("service: %w", err)
	}

	results := assembleResults(poll, tally, eligible)
	s.metrics.ObserveTabulation(poll.ID.String(), started)

	if final && s.cache != nil {
		if err := s.cache.Set(ctx, results); err != nil {
			s.l.Warn("failed to store results in cache", zap.Stringer("poll_id", poll.ID), zap.Error(err))
		}
	}

	return visibleTo(caller, results), nil
}

// eligiblePopulation is the frozen snapshot size for closed join mode and
// the current group population otherwise.
func (s *tabulationService) eligiblePopulation(ctx context.Context, poll *domain.Poll) (int64, error) {
	if poll.JoinMode == domain.JoinModeClosed {
		n, err := s.snapshots.Size(ctx, poll.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to size eligibility snapshot: %w", err)
		}
		return n, nil
	}
	n, err := s.membership.CountMembers(ctx, poll.TargetGroups)
	if err != nil {
		return 0, fmt.Errorf("failed to count eligible members: %w", err)
	}
	return n, nil
}

// visibleTo strips the roster for unauthenticated callers. Identity
// filtering itself already happened in assembleResults.
func visibleTo(caller domain.Caller, results *domain.Results) *domain.Results {
	if caller.Authenticated() {
		return results
	}
	return results.WithoutRoster()
}

func assembleResults(poll *domain.Poll, tally *domain.Tally, eligible int64) *domain.Results {
	results := &domain.Results{
		PollID:         poll.ID,
		Status:         poll.Status,
		VoteMode:       poll.VoteMode,
		Final:          poll.Status == domain.PollStatusClosed,
		Eligible:       eligible,
		BallotsCast:    tally.BallotsCast,
		NonVoters:      max(eligible-tally.BallotsCast, 0),
		TurnoutPercent: percentOf(tally.BallotsCast, eligible),
		Questions:      make([]domain.QuestionResult, 0, len(poll.Questions)),
	}

	for _, q := range poll.Questions {
		qr := domain.QuestionResult{
			QuestionID: q.ID,
			Position:   q.Position,
			Text:       q.Text,
			Answers:    make([]domain.AnswerResult, 0, len(q.Answers)),
		}
		for _, a := range q.Answers {
			votes := tally.AnswerCounts[a.ID]
			qr.Answers = append(qr.Answers, domain.AnswerResult{
				AnswerID:   a.ID,
				Text:       a.Text,
				IsAbstain:  a.IsAbstain,
				Votes:      votes,
				Percentage: percentOf(votes, tally.BallotsCast),
			})
		}
		qr.LeadingAnswerID = leadingAnswer(qr.Answers)
		results.Questions = append(results.Questions, qr)
	}

	for _, v := range tally.Voters {
		if entry, ok := domain.Disclose(poll.VoteMode, v.Disclosure, &v.Member); ok {
			results.Roster = append(results.Roster, entry)
		}
	}

	return results
}

// leadingAnswer picks the non-abstain answer with the most votes; the first
// one wins a tie. Nothing leads while no substantive answer has votes.
func leadingAnswer(answers []domain.AnswerResult) *uuid.UUID {
	var (
		lead *uuid.UUID
		best int64
	)
	for i := range answers {
		if answers[i].IsAbstain {
			continue
		}
		if answers[i].Votes > best {
			best = answers[i].Votes
			lead = &answers[i].AnswerID
		}
	}
	return lead
}

// percentOf rounds to the nearest whole percent. Rounded shares of a
// question are not forced to add up to 100.
func percentOf(part, total int64) int64 {
	if total <= 0 {
		return 0
	}
	return int64(math.Round(float64(part) * 100 / float64(total)))
}
