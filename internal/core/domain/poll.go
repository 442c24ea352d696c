package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type PollStatus string

const (
	PollStatusDraft  PollStatus = "draft"
	PollStatusOpen   PollStatus = "open"
	PollStatusClosed PollStatus = "closed"
)

// JoinMode closed freezes eligibility to the membership captured when the poll opens.
type JoinMode string

const (
	JoinModeOpen   JoinMode = "open"
	JoinModeClosed JoinMode = "closed"
)

type VoteMode string

const (
	VoteModePublic    VoteMode = "public"
	VoteModeAnonymous VoteMode = "anonymous"
)

const (
	MinQuestions = 1
	MaxQuestions = 24
	MinAnswers   = 3
	MaxAnswers   = 12
)

type Poll struct {
	ID           uuid.UUID   `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description,omitempty"`
	Status       PollStatus  `json:"status"`
	DateStart    time.Time   `json:"date_start"`
	DateEnd      time.Time   `json:"date_end"`
	EndsOnDate   bool        `json:"ends_on_date"`
	JoinMode     JoinMode    `json:"join_mode"`
	VoteMode     VoteMode    `json:"vote_mode"`
	Questions    []Question  `json:"questions"`
	TargetGroups []uuid.UUID `json:"target_groups,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	OpenedAt     *time.Time  `json:"opened_at,omitempty"`
	ClosedAt     *time.Time  `json:"closed_at,omitempty"`
}

type Question struct {
	ID       uuid.UUID `json:"id"`
	PollID   uuid.UUID `json:"poll_id"`
	Position int       `json:"position"`
	Text     string    `json:"text"`
	Answers  []Answer  `json:"answers"`
}

type Answer struct {
	ID         uuid.UUID `json:"id"`
	QuestionID uuid.UUID `json:"question_id"`
	Position   int       `json:"position"`
	Text       string    `json:"text"`
	IsAbstain  bool      `json:"is_abstain"`
}

// VotingEnds returns the last instant at which ballots are accepted. A
// date-only end covers the whole of that day.
func (p *Poll) VotingEnds() time.Time {
	if !p.EndsOnDate {
		return p.DateEnd
	}
	y, m, d := p.DateEnd.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), p.DateEnd.Location())
}

// WindowReason checks now against the inclusive voting window.
func (p *Poll) WindowReason(now time.Time) (ReasonCode, bool) {
	if now.Before(p.DateStart) {
		return ReasonBeforeStart, false
	}
	if now.After(p.VotingEnds()) {
		return ReasonAfterEnd, false
	}
	return "", true
}

func (p *Poll) Expired(now time.Time) bool {
	return now.After(p.VotingEnds())
}

func (p *Poll) Question(id uuid.UUID) (*Question, bool) {
	for i := range p.Questions {
		if p.Questions[i].ID == id {
			return &p.Questions[i], true
		}
	}
	return nil, false
}

func (q *Question) HasAnswer(id uuid.UUID) bool {
	for _, a := range q.Answers {
		if a.ID == id {
			return true
		}
	}
	return false
}

// Validate checks the structural invariants a poll must hold before it opens.
func (p *Poll) Validate() error {
	if p.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidPoll)
	}
	if !p.DateEnd.After(p.DateStart) {
		return fmt.Errorf("%w: date_end must be after date_start", ErrInvalidPoll)
	}
	switch p.JoinMode {
	case JoinModeOpen, JoinModeClosed:
	default:
		return fmt.Errorf("%w: unknown join mode %q", ErrInvalidPoll, p.JoinMode)
	}
	switch p.VoteMode {
	case VoteModePublic, VoteModeAnonymous:
	default:
		return fmt.Errorf("%w: unknown vote mode %q", ErrInvalidPoll, p.VoteMode)
	}
	if len(p.Questions) < MinQuestions || len(p.Questions) > MaxQuestions {
		return fmt.Errorf("%w: a poll needs %d to %d questions, got %d", ErrInvalidPoll, MinQuestions, MaxQuestions, len(p.Questions))
	}
	for _, q := range p.Questions {
		if len(q.Answers) < MinAnswers || len(q.Answers) > MaxAnswers {
			return fmt.Errorf("%w: question %s needs %d to %d answers, got %d", ErrInvalidPoll, q.ID, MinAnswers, MaxAnswers, len(q.Answers))
		}
		last := len(q.Answers) - 1
		for i, a := range q.Answers {
			if a.IsAbstain != (i == last) {
				return fmt.Errorf("%w: question %s must end with exactly one abstain answer", ErrInvalidPoll, q.ID)
			}
		}
	}
	return nil
}
