package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/ballot/internal/core/domain"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const sweepConcurrency = 8

type pollService struct {
	repo       ports.PollRepository
	events     ports.EventPublisher
	tabulation ports.TabulationService
	clock      ports.Clock
	l          *zap.Logger
}

// NewPollService wires the lifecycle operations. events and tabulation may be
// nil: without them no events are published and closing does not warm the
// results cache.
func NewPollService(
	repo ports.PollRepository,
	events ports.EventPublisher,
	tabulation ports.TabulationService,
	clock ports.Clock,
	l *zap.Logger,
) ports.PollService {
	if clock == nil {
		clock = systemClock{}
	}
	return &pollService{
		repo:       repo,
		events:     events,
		tabulation: tabulation,
		clock:      clock,
		l:          l,
	}
}

func (s *pollService) GetPoll(ctx context.Context, id string) (*domain.Poll, error) {
	pollID, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.ErrInvalidPollID
	}

	return s.repo.GetByID(ctx, pollID)
}

func (s *pollService) Open(ctx context.Context, id uuid.UUID) (*domain.Poll, error) {
	poll, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if poll.Status != domain.PollStatusDraft {
		return nil, fmt.Errorf("%w: cannot open a %s poll", domain.ErrInvalidTransition, poll.Status)
	}
	if err := poll.Validate(); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := s.repo.MarkOpen(ctx, id, now); err != nil {
		return nil, err
	}
	poll.Status = domain.PollStatusOpen
	poll.OpenedAt = &now

	s.l.Info("poll opened", zap.Stringer("poll_id", id), zap.String("join_mode", string(poll.JoinMode)))
	s.publish(ctx, domain.PollEventOpened, poll)

	return poll, nil
}

func (s *pollService) Close(ctx context.Context, id uuid.UUID) (*domain.Poll, error) {
	poll, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if poll.Status != domain.PollStatusOpen {
		return nil, fmt.Errorf("%w: cannot close a %s poll", domain.ErrInvalidTransition, poll.Status)
	}

	now := s.clock.Now()
	if err := s.repo.MarkClosed(ctx, id, now); err != nil {
		return nil, err
	}
	poll.Status = domain.PollStatusClosed
	poll.ClosedAt = &now

	s.l.Info("poll closed", zap.Stringer("poll_id", id))
	s.publish(ctx, domain.PollEventClosed, poll)

	if s.tabulation != nil {
		if _, err := s.tabulation.Tabulate(ctx, domain.Caller{}, id); err != nil {
			s.l.Warn("failed to warm final results", zap.Stringer("poll_id", id), zap.Error(err))
		}
	}

	return poll, nil
}

// CloseExpired closes every open poll whose voting window has elapsed and
// reports how many were closed.
func (s *pollService) CloseExpired(ctx context.Context) (int, error) {
	polls, err := s.repo.ListOpen(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch open polls: %w", err)
	}

	now := s.clock.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)

	closed := make(chan uuid.UUID, len(polls))
	for _, poll := range polls {
		if !poll.Expired(now) {
			continue
		}
		g.Go(func() error {
			if _, err := s.Close(gctx, poll.ID); err != nil {
				if errors.Is(err, domain.ErrInvalidTransition) {
					// Closed by someone else in the meantime.
					return nil
				}
				return fmt.Errorf("failed to close poll %s: %w", poll.ID, err)
			}
			closed <- poll.ID
			return nil
		})
	}

	err = g.Wait()
	close(closed)
	return len(closed), err
}

func (s *pollService) publish(ctx context.Context, eventType domain.PollEventType, poll *domain.Poll) {
	if s.events == nil {
		return
	}
	event := domain.PollEvent{
		Type:         eventType,
		PollID:       poll.ID,
		JoinMode:     poll.JoinMode,
		TargetGroups: poll.TargetGroups,
		OccurredAt:   s.clock.Now(),
	}
	// Publishing happens after commit, so a failure is only logged.
	if err := s.events.Publish(ctx, event); err != nil {
		s.l.Error("failed to publish poll event",
			zap.String("event", string(eventType)), zap.Stringer("poll_id", poll.ID), zap.Error(err))
	}
}
