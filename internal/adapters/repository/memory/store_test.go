package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vncsmyrnk/ballot/internal/core/domain"
)

func newPoll(joinMode domain.JoinMode, groups ...uuid.UUID) *domain.Poll {
	return &domain.Poll{
		Title:        "Poll",
		DateStart:    time.Now().Add(-time.Hour),
		DateEnd:      time.Now().Add(time.Hour),
		JoinMode:     joinMode,
		VoteMode:     domain.VoteModePublic,
		TargetGroups: groups,
		Questions: []domain.Question{{
			Answers: []domain.Answer{{Text: "A"}, {Text: "B"}, {Text: "Abstain", IsAbstain: true}},
		}},
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	poll := newPoll(domain.JoinModeOpen)
	require.NoError(t, store.Polls().Save(ctx, poll))

	got, err := store.Polls().GetByID(ctx, poll.ID)
	require.NoError(t, err)
	got.Questions[0].Answers[0].Text = "changed"

	again, err := store.Polls().GetByID(ctx, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", again.Questions[0].Answers[0].Text)
}

func TestStore_SnapshotCapturedOnOpen(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	group := uuid.New()
	inside, outside := uuid.New(), uuid.New()
	store.AddMember(domain.Member{ID: inside})
	store.AddMember(domain.Member{ID: outside})
	store.AddToGroup(group, inside)

	poll := newPoll(domain.JoinModeClosed, group)
	require.NoError(t, store.Polls().Save(ctx, poll))
	require.NoError(t, store.Polls().MarkOpen(ctx, poll.ID, time.Now()))

	members := store.Members()
	ok, err := members.Contains(ctx, poll.ID, inside)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = members.Contains(ctx, poll.ID, outside)
	require.NoError(t, err)
	assert.False(t, ok)

	size, err := members.Size(ctx, poll.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, size)
}

func TestStore_InsertUniqueness(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	poll := newPoll(domain.JoinModeOpen)
	require.NoError(t, store.Polls().Save(ctx, poll))

	memberID := uuid.New()
	ballot := &domain.Ballot{ID: uuid.New(), PollID: poll.ID, MemberID: memberID}
	assert.ErrorIs(t, store.Ballots().Insert(ctx, ballot), domain.ErrPollNotOpen)

	require.NoError(t, store.Polls().MarkOpen(ctx, poll.ID, time.Now()))
	require.NoError(t, store.Ballots().Insert(ctx, ballot))
	assert.ErrorIs(t, store.Ballots().Insert(ctx, &domain.Ballot{ID: uuid.New(), PollID: poll.ID, MemberID: memberID}), domain.ErrAlreadyVoted)
	assert.Len(t, store.BallotsFor(poll.ID), 1)
}
