package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/ballot/internal/core/domain"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
)

const ballotUniqueConstraint = "ballots_poll_member_key"

type ballotRepository struct {
	db *sql.DB
}

func NewBallotRepository(db *sql.DB) ports.BallotRepository {
	return &ballotRepository{
		db: db,
	}
}

// Insert writes the ballot and its answer rows in one transaction. The poll
// row is share-locked first, so a concurrent close waits for the cast to
// finish and a cast never lands on a poll that is no longer open.
func (r *ballotRepository) Insert(ctx context.Context, ballot *domain.Ballot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var status domain.PollStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM polls WHERE id = $1 FOR SHARE`, ballot.PollID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrPollNotFound
		}
		return fmt.Errorf("failed to lock poll: %w", err)
	}
	if status != domain.PollStatusOpen {
		return domain.ErrPollNotOpen
	}

	queryBallot := `
		INSERT INTO ballots (id, poll_id, member_id, disclosure, cast_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = tx.ExecContext(ctx, queryBallot, ballot.ID, ballot.PollID, ballot.MemberID, ballot.Disclosure, ballot.CastAt)
	if err != nil {
		switch {
		case isUniqueViolation(err, ballotUniqueConstraint):
			return domain.ErrAlreadyVoted
		case isForeignKeyViolation(err):
			return fmt.Errorf("%w: %s", domain.ErrMemberNotFound, ballot.MemberID)
		}
		return fmt.Errorf("failed to insert ballot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ballot_answers (ballot_id, question_id, answer_id)
		VALUES ($1, $2, $3)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare answer statement: %w", err)
	}
	defer stmt.Close()

	for _, sel := range ballot.Selections {
		if _, err := stmt.ExecContext(ctx, ballot.ID, sel.QuestionID, sel.AnswerID); err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("%w: answer %s does not belong to question %s", domain.ErrMalformedBallot, sel.AnswerID, sel.QuestionID)
			}
			return fmt.Errorf("failed to insert ballot answer: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err, ballotUniqueConstraint) {
			return domain.ErrAlreadyVoted
		}
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *ballotRepository) Exists(ctx context.Context, pollID, memberID uuid.UUID) (bool, error) {
	query := `SELECT 1 FROM ballots WHERE poll_id = $1 AND member_id = $2 LIMIT 1`
	var exists int
	err := r.db.QueryRowContext(ctx, query, pollID, memberID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check existing ballot: %w", err)
	}
	return true, nil
}

// Tally reads the ballot count, the per-answer counts and optionally the
// voters from one repeatable-read snapshot, so the counts of every question
// add up to the ballot count even while ballots are being cast.
func (r *ballotRepository) Tally(ctx context.Context, pollID uuid.UUID, withVoters bool) (*domain.Tally, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	tally := &domain.Tally{AnswerCounts: make(map[uuid.UUID]int64)}

	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM ballots WHERE poll_id = $1`, pollID).Scan(&tally.BallotsCast)
	if err != nil {
		return nil, fmt.Errorf("failed to count ballots: %w", err)
	}

	queryCounts := `
		SELECT ba.answer_id, COUNT(*)
		FROM ballot_answers ba
		JOIN ballots b ON b.id = ba.ballot_id
		WHERE b.poll_id = $1
		GROUP BY ba.answer_id
	`
	rows, err := tx.QueryContext(ctx, queryCounts, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to count answers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			answerID uuid.UUID
			count    int64
		)
		if err := rows.Scan(&answerID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan answer count: %w", err)
		}
		tally.AnswerCounts[answerID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating answer counts: %w", err)
	}

	if withVoters {
		voters, err := fetchVoters(ctx, tx, pollID)
		if err != nil {
			return nil, err
		}
		tally.Voters = voters
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return tally, nil
}

func fetchVoters(ctx context.Context, tx *sql.Tx, pollID uuid.UUID) ([]domain.Voter, error) {
	query := `
		SELECT b.disclosure, m.id, m.email, m.nickname, m.first_name, m.last_name
		FROM ballots b
		JOIN members m ON m.id = b.member_id
		WHERE b.poll_id = $1
		ORDER BY b.cast_at, b.id
	`
	rows, err := tx.QueryContext(ctx, query, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to get voters: %w", err)
	}
	defer rows.Close()

	var voters []domain.Voter
	for rows.Next() {
		var v domain.Voter
		err := rows.Scan(&v.Disclosure, &v.Member.ID, &v.Member.Email, &v.Member.Nickname, &v.Member.FirstName, &v.Member.LastName)
		if err != nil {
			return nil, fmt.Errorf("failed to scan voter: %w", err)
		}
		voters = append(voters, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating voters: %w", err)
	}
	return voters, nil
}
