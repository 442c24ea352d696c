package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/vncsmyrnk/ballot/internal/core/domain"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	pgContainer, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("user"),
		tcpostgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := pgContainer.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(ctx, db, Up))
	return db
}

func createMember(t *testing.T, members *MemberRepository, nickname string, groups ...uuid.UUID) uuid.UUID {
	t.Helper()

	m := &domain.Member{
		Email:     nickname + "@example.com",
		Nickname:  nickname,
		FirstName: "First",
		LastName:  "Last",
	}
	require.NoError(t, members.Save(context.Background(), m))
	for _, g := range groups {
		require.NoError(t, members.AddToGroup(context.Background(), g, m.ID))
	}
	return m.ID
}

func createPoll(t *testing.T, polls *pollRepository, joinMode domain.JoinMode, groups ...uuid.UUID) *domain.Poll {
	t.Helper()

	start := time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)
	poll := &domain.Poll{
		Title:        "Budget vote",
		DateStart:    start,
		DateEnd:      start.Add(48 * time.Hour),
		JoinMode:     joinMode,
		VoteMode:     domain.VoteModePublic,
		TargetGroups: groups,
	}
	for i := range 2 {
		poll.Questions = append(poll.Questions, domain.Question{
			Position: i,
			Text:     fmt.Sprintf("Question %d", i+1),
			Answers: []domain.Answer{
				{Position: 0, Text: "Yes"},
				{Position: 1, Text: "No"},
				{Position: 2, Text: "Abstain", IsAbstain: true},
			},
		})
	}
	require.NoError(t, polls.Save(context.Background(), poll))
	return poll
}

func ballotFor(poll *domain.Poll, memberID uuid.UUID, position int) *domain.Ballot {
	b := &domain.Ballot{
		ID:         uuid.New(),
		PollID:     poll.ID,
		MemberID:   memberID,
		Disclosure: domain.DisclosureNamed,
		CastAt:     time.Now().UTC(),
	}
	for _, q := range poll.Questions {
		b.Selections = append(b.Selections, domain.Selection{QuestionID: q.ID, AnswerID: q.Answers[position].ID})
	}
	return b
}
