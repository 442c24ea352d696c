package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vncsmyrnk/ballot/internal/core/domain"
)

func TestNewMessage(t *testing.T) {
	event := domain.PollEvent{
		Type:         domain.PollEventOpened,
		PollID:       uuid.New(),
		JoinMode:     domain.JoinModeClosed,
		TargetGroups: []uuid.UUID{uuid.New()},
		OccurredAt:   time.Date(2026, time.May, 1, 8, 0, 0, 0, time.UTC),
	}

	msg, err := newMessage(event)
	require.NoError(t, err)
	assert.Equal(t, event.PollID.String(), string(msg.Key))
	assert.Equal(t, event.OccurredAt, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "poll.opened", string(msg.Headers[0].Value))

	var decoded domain.PollEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event, decoded)
}
