package domain

import "github.com/google/uuid"

// Tally is the raw count data for one poll, read from a single consistent
// view of storage.
type Tally struct {
	BallotsCast  int64
	AnswerCounts map[uuid.UUID]int64
	Voters       []Voter
}

// Voter pairs a ballot's disclosure choice with the member who cast it, in
// cast order.
type Voter struct {
	Member     Member
	Disclosure Disclosure
}

type Results struct {
	PollID         uuid.UUID        `json:"poll_id"`
	Status         PollStatus       `json:"status"`
	VoteMode       VoteMode         `json:"vote_mode"`
	Final          bool             `json:"final"`
	Eligible       int64            `json:"eligible"`
	BallotsCast    int64            `json:"ballots_cast"`
	NonVoters      int64            `json:"non_voters"`
	TurnoutPercent int64            `json:"turnout_percent"`
	Questions      []QuestionResult `json:"questions"`
	Roster         []RosterEntry    `json:"roster,omitempty"`
}

// QuestionResult holds one question's counts in authoring order.
// LeadingAnswerID is the non-abstain answer with the most votes, the earliest
// answer winning a tie. It is omitted while no non-abstain answer has a vote.
type QuestionResult struct {
	QuestionID      uuid.UUID      `json:"question_id"`
	Position        int            `json:"position"`
	Text            string         `json:"text"`
	Answers         []AnswerResult `json:"answers"`
	LeadingAnswerID *uuid.UUID     `json:"leading_answer_id,omitempty"`
}

type AnswerResult struct {
	AnswerID   uuid.UUID `json:"answer_id"`
	Text       string    `json:"text"`
	IsAbstain  bool      `json:"is_abstain"`
	Votes      int64     `json:"votes"`
	Percentage int64     `json:"percentage"`
}

// RosterEntry is the public identity record of one ballot. Which fields are
// set depends on the disclosure rules.
type RosterEntry struct {
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
	Nickname    string `json:"nickname,omitempty"`
}

// WithoutRoster returns a copy of r that carries aggregate data only.
func (r *Results) WithoutRoster() *Results {
	out := *r
	out.Roster = nil
	return &out
}
