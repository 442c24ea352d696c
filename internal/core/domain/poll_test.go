package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func validPoll() *Poll {
	start := time.Date(2026, time.January, 1, 9, 0, 0, 0, time.UTC)
	return &Poll{
		Title:     "Budget",
		DateStart: start,
		DateEnd:   start.Add(48 * time.Hour),
		JoinMode:  JoinModeOpen,
		VoteMode:  VoteModePublic,
		Questions: []Question{{
			ID: uuid.New(),
			Answers: []Answer{
				{ID: uuid.New(), Text: "Yes"},
				{ID: uuid.New(), Text: "No"},
				{ID: uuid.New(), Text: "Abstain", IsAbstain: true},
			},
		}},
	}
}

func TestPollValidate(t *testing.T) {
	assert.NoError(t, validPoll().Validate())

	tests := map[string]func(p *Poll){
		"no title":            func(p *Poll) { p.Title = "" },
		"end before start":    func(p *Poll) { p.DateEnd = p.DateStart.Add(-time.Hour) },
		"unknown join mode":   func(p *Poll) { p.JoinMode = "invite" },
		"unknown vote mode":   func(p *Poll) { p.VoteMode = "secret" },
		"no questions":        func(p *Poll) { p.Questions = nil },
		"too few answers":     func(p *Poll) { p.Questions[0].Answers = p.Questions[0].Answers[1:] },
		"abstain not last":    func(p *Poll) { p.Questions[0].Answers[0].IsAbstain, p.Questions[0].Answers[2].IsAbstain = true, false },
		"two abstain answers": func(p *Poll) { p.Questions[0].Answers[1].IsAbstain = true },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			p := validPoll()
			mutate(p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidPoll)
		})
	}
}

func TestVotingEnds(t *testing.T) {
	p := validPoll()
	assert.Equal(t, p.DateEnd, p.VotingEnds())

	p.EndsOnDate = true
	end := p.VotingEnds()
	assert.Equal(t, 23, end.Hour())
	assert.Equal(t, p.DateEnd.Day(), end.Day())
	assert.True(t, p.DateEnd.Add(24*time.Hour).After(end))

	reason, ok := p.WindowReason(end)
	assert.True(t, ok)
	assert.Empty(t, reason)

	reason, ok = p.WindowReason(end.Add(time.Nanosecond))
	assert.False(t, ok)
	assert.Equal(t, ReasonAfterEnd, reason)

	reason, ok = p.WindowReason(p.DateStart.Add(-time.Nanosecond))
	assert.False(t, ok)
	assert.Equal(t, ReasonBeforeStart, reason)
}

func TestHasBallot(t *testing.T) {
	assert.True(t, HasBallot(ErrAlreadyVoted))
	assert.True(t, HasBallot(Ineligible(ReasonAlreadyVoted).Err()))
	assert.False(t, HasBallot(Ineligible(ReasonAfterEnd).Err()))
	assert.False(t, HasBallot(nil))
}
