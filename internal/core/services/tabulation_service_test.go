package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vncsmyrnk/ballot/internal/core/domain"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
	"go.uber.org/zap/zaptest"
)

func castFor(t *testing.T, env *testEnv, caller domain.Caller, poll *domain.Poll, disclosure domain.Disclosure, positions ...int) {
	t.Helper()

	_, err := env.ballots.Cast(context.Background(), ports.CastInput{
		Caller:     caller,
		PollID:     poll.ID,
		Answers:    answers(poll, positions...),
		Disclosure: disclosure,
	})
	require.NoError(t, err)
}

func votesOf(q domain.QuestionResult) []int64 {
	out := make([]int64, 0, len(q.Answers))
	for _, a := range q.Answers {
		out = append(out, a.Votes)
	}
	return out
}

func TestTabulate_TwoOfFiveVoted(t *testing.T) {
	env := newTestEnv(t)
	poll := env.openPoll(t, 2)

	m1 := env.member(t, "m1")
	m2 := env.member(t, "m2")
	for _, n := range []string{"m3", "m4", "m5"} {
		env.member(t, n)
	}

	castFor(t, env, m1, poll, domain.DisclosureNamed, 0, 0)
	castFor(t, env, m2, poll, domain.DisclosureAnonymous, 1, 2)

	results, err := env.tabulation.Tabulate(context.Background(), m1, poll.ID)
	require.NoError(t, err)

	assert.EqualValues(t, 2, results.BallotsCast)
	assert.EqualValues(t, 5, results.Eligible)
	assert.EqualValues(t, 3, results.NonVoters)
	assert.EqualValues(t, 40, results.TurnoutPercent)
	assert.False(t, results.Final)

	require.Len(t, results.Questions, 2)
	assert.Equal(t, []int64{1, 1, 0}, votesOf(results.Questions[0]))
	assert.Equal(t, []int64{1, 0, 1}, votesOf(results.Questions[1]))

	q1 := results.Questions[0]
	assert.EqualValues(t, 50, q1.Answers[0].Percentage)
	assert.EqualValues(t, 50, q1.Answers[1].Percentage)
	assert.EqualValues(t, 0, q1.Answers[2].Percentage)
	require.NotNil(t, q1.LeadingAnswerID)
	assert.Equal(t, q1.Answers[0].AnswerID, *q1.LeadingAnswerID, "first answer wins a tie")

	require.Len(t, results.Roster, 2)
	assert.Equal(t, domain.RosterEntry{DisplayName: "First m1 Last m1", Email: "m***@example.com"}, results.Roster[0])
	assert.Equal(t, domain.RosterEntry{Nickname: "m2"}, results.Roster[1])
}

func TestTabulate_AbstainNeverLeads(t *testing.T) {
	env := newTestEnv(t)
	poll := env.openPoll(t, 1)
	castFor(t, env, env.member(t, "m1"), poll, domain.DisclosureNamed, 2)

	results, err := env.tabulation.Tabulate(context.Background(), domain.Caller{}, poll.ID)
	require.NoError(t, err)
	assert.Nil(t, results.Questions[0].LeadingAnswerID)
	assert.EqualValues(t, 100, results.Questions[0].Answers[2].Percentage)
}

func TestTabulate_AnonymousPollHasNoIdentity(t *testing.T) {
	env := newTestEnv(t)
	poll := env.openPoll(t, 1, withVoteMode(domain.VoteModeAnonymous))
	admin := env.member(t, "admin")
	admin.Role = domain.RoleAdmin

	castFor(t, env, env.member(t, "named"), poll, domain.DisclosureNamed, 0)
	castFor(t, env, env.member(t, "anon"), poll, domain.DisclosureAnonymous, 1)

	for _, caller := range []domain.Caller{{}, env.member(t, "viewer"), admin} {
		results, err := env.tabulation.Tabulate(context.Background(), caller, poll.ID)
		require.NoError(t, err)
		assert.Empty(t, results.Roster)

		raw, err := json.Marshal(results)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "example.com")
		assert.NotContains(t, string(raw), "named")
		assert.NotContains(t, string(raw), "roster")
	}
}

func TestTabulate_RosterHiddenFromAnonymousCallers(t *testing.T) {
	env := newTestEnv(t)
	poll := env.openPoll(t, 1)
	castFor(t, env, env.member(t, "m1"), poll, domain.DisclosureNamed, 0)

	results, err := env.tabulation.Tabulate(context.Background(), domain.Caller{}, poll.ID)
	require.NoError(t, err)
	assert.Empty(t, results.Roster)
	assert.EqualValues(t, 1, results.BallotsCast)
}

func TestTabulate_CountsMatchBallotsCast(t *testing.T) {
	env := newTestEnv(t)
	poll := env.openPoll(t, 4)

	for i := range 17 {
		caller := env.member(t, uuid.NewString()[:8])
		castFor(t, env, caller, poll, domain.DisclosureNamed, i%3, (i+1)%3, (i*7)%3, 2)
	}

	results, err := env.tabulation.Tabulate(context.Background(), domain.Caller{}, poll.ID)
	require.NoError(t, err)
	for _, q := range results.Questions {
		var sum int64
		for _, a := range q.Answers {
			sum += a.Votes
		}
		assert.Equal(t, results.BallotsCast, sum, "question %d", q.Position)
	}
}

func TestTabulate_ClosedPollIsStable(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	poll := env.openPoll(t, 2)
	for _, n := range []string{"m1", "m2", "m3"} {
		castFor(t, env, env.member(t, n), poll, domain.DisclosureNamed, 0, 1)
	}
	_, err := env.polls.Close(ctx, poll.ID)
	require.NoError(t, err)

	viewer := env.member(t, "viewer")
	first, err := env.tabulation.Tabulate(ctx, viewer, poll.ID)
	require.NoError(t, err)
	second, err := env.tabulation.Tabulate(ctx, viewer, poll.ID)
	require.NoError(t, err)

	assert.True(t, first.Final)
	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestTabulate_ClosedPollFromCache(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	poll := env.openPoll(t, 2)
	castFor(t, env, env.member(t, "m1"), poll, domain.DisclosureNamed, 0, 1)
	castFor(t, env, env.member(t, "m2"), poll, domain.DisclosureAnonymous, 1, 2)
	_, err := env.polls.Close(ctx, poll.ID)
	require.NoError(t, err)

	cache := newJSONCache()
	tabulation := NewTabulationService(TabulationDeps{
		Polls:      env.store.Polls(),
		Ballots:    env.store.Ballots(),
		Membership: env.store.Members(),
		Snapshots:  env.store.Members(),
		Cache:      cache,
	}, zaptest.NewLogger(t))

	viewer := env.member(t, "viewer")
	computed, err := tabulation.Tabulate(ctx, viewer, poll.ID)
	require.NoError(t, err)
	require.Zero(t, cache.Hits())

	cached, err := tabulation.Tabulate(ctx, viewer, poll.ID)
	require.NoError(t, err)
	require.Equal(t, 1, cache.Hits())

	a, err := json.Marshal(computed)
	require.NoError(t, err)
	b, err := json.Marshal(cached)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Len(t, cached.Roster, 2)

	anonymous, err := tabulation.Tabulate(ctx, domain.Caller{}, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Hits())
	assert.Empty(t, anonymous.Roster)
	assert.Equal(t, int64(2), anonymous.BallotsCast)
	assert.Equal(t, computed.Questions, anonymous.Questions)
}

func TestTabulate_DraftPoll(t *testing.T) {
	env := newTestEnv(t)
	poll := env.draftPoll(t, 1)

	_, err := env.tabulation.Tabulate(context.Background(), domain.Caller{}, poll.ID)
	assert.ErrorIs(t, err, domain.ErrResultsUnavailable)

	_, err = env.tabulation.Tabulate(context.Background(), domain.Caller{}, uuid.New())
	assert.ErrorIs(t, err, domain.ErrPollNotFound)
}

func TestTabulate_NoBallots(t *testing.T) {
	env := newTestEnv(t)
	poll := env.openPoll(t, 1)

	results, err := env.tabulation.Tabulate(context.Background(), domain.Caller{}, poll.ID)
	require.NoError(t, err)
	assert.Zero(t, results.BallotsCast)
	assert.Zero(t, results.Eligible)
	assert.Zero(t, results.TurnoutPercent)
	for _, a := range results.Questions[0].Answers {
		assert.Zero(t, a.Percentage)
	}
}

func TestPercentOf(t *testing.T) {
	tests := []struct {
		part, total, want int64
	}{
		{0, 0, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 13},
		{3, 3, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, percentOf(tt.part, tt.total), "%d/%d", tt.part, tt.total)
	}
}
