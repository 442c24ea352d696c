// Package memory keeps polls, members and ballots in process memory. It is
// used for local runs and as the storage behind service and handler tests.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/ballot/internal/core/domain"
)

type ballotKey struct {
	pollID   uuid.UUID
	memberID uuid.UUID
}

// Store is the shared state behind the repositories in this package. A
// single mutex guards everything, so each repository call is atomic.
type Store struct {
	mu sync.RWMutex

	polls     map[uuid.UUID]*domain.Poll
	members   map[uuid.UUID]*domain.Member
	groups    map[uuid.UUID]map[uuid.UUID]struct{}
	snapshots map[uuid.UUID]map[uuid.UUID]struct{}

	ballots     []*domain.Ballot
	ballotIndex map[ballotKey]struct{}
}

func NewStore() *Store {
	return &Store{
		polls:       make(map[uuid.UUID]*domain.Poll),
		members:     make(map[uuid.UUID]*domain.Member),
		groups:      make(map[uuid.UUID]map[uuid.UUID]struct{}),
		snapshots:   make(map[uuid.UUID]map[uuid.UUID]struct{}),
		ballotIndex: make(map[ballotKey]struct{}),
	}
}

func (s *Store) Polls() *PollRepository {
	return &PollRepository{s: s}
}

func (s *Store) Members() *MemberRepository {
	return &MemberRepository{s: s}
}

func (s *Store) Ballots() *BallotRepository {
	return &BallotRepository{s: s}
}

// AddMember registers or replaces a member.
func (s *Store) AddMember(m domain.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	s.members[m.ID] = &m
}

// AddToGroup puts a member into a group, creating the group on first use.
func (s *Store) AddToGroup(groupID, memberID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.groups[groupID] == nil {
		s.groups[groupID] = make(map[uuid.UUID]struct{})
	}
	s.groups[groupID][memberID] = struct{}{}
}

func (s *Store) RemoveFromGroup(groupID, memberID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.groups[groupID], memberID)
}

// eligibleLocked returns the ids of members in any of groups, or of every
// member when groups is empty. Callers hold s.mu.
func (s *Store) eligibleLocked(groups []uuid.UUID) map[uuid.UUID]struct{} {
	out := make(map[uuid.UUID]struct{})
	if len(groups) == 0 {
		for id := range s.members {
			out[id] = struct{}{}
		}
		return out
	}
	for _, g := range groups {
		for id := range s.groups[g] {
			if _, ok := s.members[id]; ok {
				out[id] = struct{}{}
			}
		}
	}
	return out
}

type PollRepository struct {
	s *Store
}

func (r *PollRepository) Save(ctx context.Context, poll *domain.Poll) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if poll.ID == uuid.Nil {
		poll.ID = uuid.New()
	}
	if poll.Status == "" {
		poll.Status = domain.PollStatusDraft
	}
	if poll.CreatedAt.IsZero() {
		poll.CreatedAt = time.Now().UTC()
	}
	for i := range poll.Questions {
		q := &poll.Questions[i]
		if q.ID == uuid.Nil {
			q.ID = uuid.New()
		}
		q.PollID = poll.ID
		for j := range q.Answers {
			a := &q.Answers[j]
			if a.ID == uuid.Nil {
				a.ID = uuid.New()
			}
			a.QuestionID = q.ID
		}
	}

	r.s.polls[poll.ID] = clonePoll(poll)
	return nil
}

func (r *PollRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Poll, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	poll, ok := r.s.polls[id]
	if !ok {
		return nil, domain.ErrPollNotFound
	}
	return clonePoll(poll), nil
}

func (r *PollRepository) ListOpen(ctx context.Context) ([]*domain.Poll, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var polls []*domain.Poll
	for _, p := range r.s.polls {
		if p.Status == domain.PollStatusOpen {
			polls = append(polls, clonePoll(p))
		}
	}
	slices.SortFunc(polls, func(a, b *domain.Poll) int {
		return a.VotingEnds().Compare(b.VotingEnds())
	})
	return polls, nil
}

func (r *PollRepository) MarkOpen(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	poll, ok := r.s.polls[id]
	if !ok {
		return domain.ErrPollNotFound
	}
	if poll.Status != domain.PollStatusDraft {
		return fmt.Errorf("%w: poll is %s", domain.ErrInvalidTransition, poll.Status)
	}

	poll.Status = domain.PollStatusOpen
	poll.OpenedAt = &at
	if poll.JoinMode == domain.JoinModeClosed {
		r.s.snapshots[id] = r.s.eligibleLocked(poll.TargetGroups)
	}
	return nil
}

func (r *PollRepository) MarkClosed(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	poll, ok := r.s.polls[id]
	if !ok {
		return domain.ErrPollNotFound
	}
	if poll.Status != domain.PollStatusOpen {
		return fmt.Errorf("%w: poll is %s", domain.ErrInvalidTransition, poll.Status)
	}

	poll.Status = domain.PollStatusClosed
	poll.ClosedAt = &at
	return nil
}

// MemberRepository serves as member directory, membership oracle and
// snapshot store.
type MemberRepository struct {
	s *Store
}

func (r *MemberRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Member, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	m, ok := r.s.members[id]
	if !ok {
		return nil, nil
	}
	out := *m
	out.Profile = maps.Clone(m.Profile)
	return &out, nil
}

func (r *MemberRepository) IsMemberOfAny(ctx context.Context, memberID uuid.UUID, groups []uuid.UUID) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, g := range groups {
		if _, ok := r.s.groups[g][memberID]; ok {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemberRepository) CountMembers(ctx context.Context, groups []uuid.UUID) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return int64(len(r.s.eligibleLocked(groups))), nil
}

func (r *MemberRepository) Contains(ctx context.Context, pollID, memberID uuid.UUID) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	_, ok := r.s.snapshots[pollID][memberID]
	return ok, nil
}

func (r *MemberRepository) Size(ctx context.Context, pollID uuid.UUID) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return int64(len(r.s.snapshots[pollID])), nil
}

type BallotRepository struct {
	s *Store
}

func (r *BallotRepository) Insert(ctx context.Context, ballot *domain.Ballot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	poll, ok := r.s.polls[ballot.PollID]
	if !ok {
		return domain.ErrPollNotFound
	}
	if poll.Status != domain.PollStatusOpen {
		return domain.ErrPollNotOpen
	}

	key := ballotKey{pollID: ballot.PollID, memberID: ballot.MemberID}
	if _, exists := r.s.ballotIndex[key]; exists {
		return domain.ErrAlreadyVoted
	}

	stored := *ballot
	stored.Selections = slices.Clone(ballot.Selections)
	r.s.ballots = append(r.s.ballots, &stored)
	r.s.ballotIndex[key] = struct{}{}
	return nil
}

func (r *BallotRepository) Exists(ctx context.Context, pollID, memberID uuid.UUID) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	_, ok := r.s.ballotIndex[ballotKey{pollID: pollID, memberID: memberID}]
	return ok, nil
}

func (r *BallotRepository) Tally(ctx context.Context, pollID uuid.UUID, withVoters bool) (*domain.Tally, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	tally := &domain.Tally{AnswerCounts: make(map[uuid.UUID]int64)}
	for _, b := range r.s.ballots {
		if b.PollID != pollID {
			continue
		}
		tally.BallotsCast++
		for _, sel := range b.Selections {
			tally.AnswerCounts[sel.AnswerID]++
		}
		if !withVoters {
			continue
		}
		var member domain.Member
		if m, ok := r.s.members[b.MemberID]; ok {
			member = *m
		}
		tally.Voters = append(tally.Voters, domain.Voter{Member: member, Disclosure: b.Disclosure})
	}
	return tally, nil
}

// BallotsFor returns copies of the stored ballots of a poll in cast order.
func (s *Store) BallotsFor(pollID uuid.UUID) []domain.Ballot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Ballot
	for _, b := range s.ballots {
		if b.PollID == pollID {
			out = append(out, *b)
		}
	}
	return out
}

func clonePoll(p *domain.Poll) *domain.Poll {
	out := *p
	out.TargetGroups = slices.Clone(p.TargetGroups)
	out.Questions = make([]domain.Question, len(p.Questions))
	for i, q := range p.Questions {
		q.Answers = slices.Clone(q.Answers)
		out.Questions[i] = q
	}
	if p.OpenedAt != nil {
		t := *p.OpenedAt
		out.OpenedAt = &t
	}
	if p.ClosedAt != nil {
		t := *p.ClosedAt
		out.ClosedAt = &t
	}
	return &out
}
