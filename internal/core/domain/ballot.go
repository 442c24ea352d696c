package domain

import (
	"time"

	"github.com/google/uuid"
)

// Disclosure is the voter's own choice of how their ballot appears on a
// public poll's roster.
type Disclosure string

const (
	DisclosureNamed     Disclosure = "named"
	DisclosureAnonymous Disclosure = "anonymous"
)

func (d Disclosure) Valid() bool {
	return d == DisclosureNamed || d == DisclosureAnonymous
}

type Ballot struct {
	ID         uuid.UUID   `json:"id"`
	PollID     uuid.UUID   `json:"poll_id"`
	MemberID   uuid.UUID   `json:"member_id"`
	Disclosure Disclosure  `json:"disclosure"`
	Selections []Selection `json:"selections"`
	CastAt     time.Time   `json:"cast_at"`
}

type Selection struct {
	QuestionID uuid.UUID `json:"question_id"`
	AnswerID   uuid.UUID `json:"answer_id"`
}

type BallotReceipt struct {
	BallotID   uuid.UUID  `json:"ballot_id"`
	PollID     uuid.UUID  `json:"poll_id"`
	Disclosure Disclosure `json:"disclosure"`
	CastAt     time.Time  `json:"cast_at"`
}

func (b *Ballot) Receipt() *BallotReceipt {
	return &BallotReceipt{
		BallotID:   b.ID,
		PollID:     b.PollID,
		Disclosure: b.Disclosure,
		CastAt:     b.CastAt,
	}
}
