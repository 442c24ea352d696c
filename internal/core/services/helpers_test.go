package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/vncsmyrnk/ballot/internal/adapters/repository/memory"
	"github.com/vncsmyrnk/ballot/internal/core/domain"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
	"github.com/vncsmyrnk/ballot/internal/metrics"
	"go.uber.org/zap/zaptest"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.PollEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event domain.PollEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Events() []domain.PollEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.PollEvent(nil), p.events...)
}

// jsonCache keeps results encoded, the way the redis cache does.
type jsonCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID][]byte
	hits    int
}

func newJSONCache() *jsonCache {
	return &jsonCache{entries: make(map[uuid.UUID][]byte)}
}

func (c *jsonCache) Get(ctx context.Context, pollID uuid.UUID) (*domain.Results, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[pollID]
	if !ok {
		return nil, false, nil
	}
	var results domain.Results
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, false, err
	}
	c.hits++
	return &results, true, nil
}

func (c *jsonCache) Set(ctx context.Context, results *domain.Results) error {
	raw, err := json.Marshal(results)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[results.PollID] = raw
	return nil
}

func (c *jsonCache) Hits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits
}

type testEnv struct {
	store       *memory.Store
	clock       *fixedClock
	events      *recordingPublisher
	polls       ports.PollService
	eligibility ports.EligibilityService
	ballots     ports.BallotService
	tabulation  ports.TabulationService
}

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T, optionalFields ...domain.ProfileField) *testEnv {
	t.Helper()

	l := zaptest.NewLogger(t)
	store := memory.NewStore()
	clock := &fixedClock{now: testNow}
	events := &recordingPublisher{}
	m := metrics.NewBallotMetrics(prometheus.NewRegistry(), "test")

	pollRepo := store.Polls()
	memberRepo := store.Members()
	ballotRepo := store.Ballots()

	eligibility := NewEligibilityService(EligibilityDeps{
		Polls:        pollRepo,
		Members:      memberRepo,
		Membership:   memberRepo,
		Snapshots:    memberRepo,
		Ballots:      ballotRepo,
		Requirements: domain.NewProfileRequirements(optionalFields...),
		Clock:        clock,
	}, l)
	tabulation := NewTabulationService(TabulationDeps{
		Polls:      pollRepo,
		Ballots:    ballotRepo,
		Membership: memberRepo,
		Snapshots:  memberRepo,
		Metrics:    m,
	}, l)

	return &testEnv{
		store:       store,
		clock:       clock,
		events:      events,
		polls:       NewPollService(pollRepo, events, tabulation, clock, l),
		eligibility: eligibility,
		ballots:     NewBallotService(pollRepo, ballotRepo, eligibility, clock, m, l),
		tabulation:  tabulation,
	}
}

type pollOption func(*domain.Poll)

func withJoinMode(mode domain.JoinMode) pollOption {
	return func(p *domain.Poll) { p.JoinMode = mode }
}

func withVoteMode(mode domain.VoteMode) pollOption {
	return func(p *domain.Poll) { p.VoteMode = mode }
}

func withGroups(groups ...uuid.UUID) pollOption {
	return func(p *domain.Poll) { p.TargetGroups = groups }
}

func withWindow(start, end time.Time) pollOption {
	return func(p *domain.Poll) {
		p.DateStart = start
		p.DateEnd = end
	}
}

// draftPoll saves a valid draft poll with the given number of questions, each
// answered by "A", "B" and a trailing abstain answer.
func (e *testEnv) draftPoll(t *testing.T, questions int, opts ...pollOption) *domain.Poll {
	t.Helper()

	poll := &domain.Poll{
		Title:     "Board election",
		DateStart: testNow.Add(-time.Hour),
		DateEnd:   testNow.Add(time.Hour),
		JoinMode:  domain.JoinModeOpen,
		VoteMode:  domain.VoteModePublic,
	}
	for i := range questions {
		poll.Questions = append(poll.Questions, domain.Question{
			Position: i,
			Text:     fmt.Sprintf("Question %d", i+1),
			Answers: []domain.Answer{
				{Position: 0, Text: "A"},
				{Position: 1, Text: "B"},
				{Position: 2, Text: "Abstain", IsAbstain: true},
			},
		})
	}
	for _, opt := range opts {
		opt(poll)
	}

	require.NoError(t, e.store.Polls().Save(context.Background(), poll))
	return poll
}

func (e *testEnv) openPoll(t *testing.T, questions int, opts ...pollOption) *domain.Poll {
	t.Helper()

	poll := e.draftPoll(t, questions, opts...)
	opened, err := e.polls.Open(context.Background(), poll.ID)
	require.NoError(t, err)
	return opened
}

func (e *testEnv) member(t *testing.T, nickname string) domain.Caller {
	t.Helper()

	m := domain.Member{
		ID:        uuid.New(),
		Email:     nickname + "@example.com",
		Nickname:  nickname,
		FirstName: "First " + nickname,
		LastName:  "Last " + nickname,
	}
	e.store.AddMember(m)
	return domain.Caller{MemberID: m.ID, Role: domain.RoleMember}
}

// answers picks, for every question, the answer at the given position.
func answers(poll *domain.Poll, positions ...int) map[uuid.UUID]uuid.UUID {
	out := make(map[uuid.UUID]uuid.UUID, len(poll.Questions))
	for i, q := range poll.Questions {
		out[q.ID] = q.Answers[positions[i]].ID
	}
	return out
}
