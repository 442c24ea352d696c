package domain

import (
	"time"

	"github.com/google/uuid"
)

type PollEventType string

const (
	PollEventOpened PollEventType = "poll.opened"
	PollEventClosed PollEventType = "poll.closed"
)

type PollEvent struct {
	Type         PollEventType `json:"type"`
	PollID       uuid.UUID     `json:"poll_id"`
	JoinMode     JoinMode      `json:"join_mode"`
	TargetGroups []uuid.UUID   `json:"target_groups,omitempty"`
	OccurredAt   time.Time     `json:"occurred_at"`
}
