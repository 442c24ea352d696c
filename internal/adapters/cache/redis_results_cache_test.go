package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/vncsmyrnk/ballot/internal/core/domain"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client, err := NewRedisClient(ctx, "redis://"+endpoint)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestResultsCache(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	cache := NewResultsCache(client, time.Minute)

	leading := uuid.New()
	final := &domain.Results{
		PollID:      uuid.New(),
		Status:      domain.PollStatusClosed,
		VoteMode:    domain.VoteModePublic,
		Final:       true,
		Eligible:    5,
		BallotsCast: 2,
		NonVoters:   3,
		Questions: []domain.QuestionResult{{
			QuestionID:      uuid.New(),
			Answers:         []domain.AnswerResult{{AnswerID: leading, Votes: 2, Percentage: 100}},
			LeadingAnswerID: &leading,
		}},
		Roster: []domain.RosterEntry{{Nickname: "ada"}},
	}

	_, ok, err := cache.Get(ctx, final.PollID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, final))
	got, ok, err := cache.Get(ctx, final.PollID)
	require.NoError(t, err)
	require.True(t, ok)

	want, _ := json.Marshal(final)
	have, _ := json.Marshal(got)
	assert.JSONEq(t, string(want), string(have))

	ttl, err := client.TTL(ctx, resultsKey(final.PollID)).Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)
}

func TestResultsCache_SkipsLiveResults(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	cache := NewResultsCache(client, time.Minute)

	live := &domain.Results{PollID: uuid.New(), Status: domain.PollStatusOpen}
	require.NoError(t, cache.Set(ctx, live))

	_, ok, err := cache.Get(ctx, live.PollID)
	require.NoError(t, err)
	assert.False(t, ok)
}
