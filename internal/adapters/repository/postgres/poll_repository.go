package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/vncsmyrnk/ballot/internal/core/domain"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
)

type pollRepository struct {
	db *sql.DB
}

func NewPollRepository(db *sql.DB) ports.PollRepository {
	return &pollRepository{
		db: db,
	}
}

const pollColumns = `id, title, description, status, date_start, date_end, ends_on_date,
	join_mode, vote_mode, created_at, opened_at, closed_at`

// Save inserts a new poll together with its questions, answers and target
// groups. Missing ids are generated.
func (r *pollRepository) Save(ctx context.Context, poll *domain.Poll) error {
	if poll.ID == uuid.Nil {
		poll.ID = uuid.New()
	}
	if poll.Status == "" {
		poll.Status = domain.PollStatusDraft
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	queryPoll := `
		INSERT INTO polls (id, title, description, status, date_start, date_end, ends_on_date, join_mode, vote_mode)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`
	err = tx.QueryRowContext(ctx, queryPoll,
		poll.ID, poll.Title, poll.Description, poll.Status, poll.DateStart, poll.DateEnd,
		poll.EndsOnDate, poll.JoinMode, poll.VoteMode,
	).Scan(&poll.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert poll: %w", err)
	}

	for _, group := range poll.TargetGroups {
		_, err = tx.ExecContext(ctx, `INSERT INTO poll_target_groups (poll_id, group_id) VALUES ($1, $2)`, poll.ID, group)
		if err != nil {
			return fmt.Errorf("failed to insert target group: %w", err)
		}
	}

	questionStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO questions (id, poll_id, position, text)
		VALUES ($1, $2, $3, $4)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare question statement: %w", err)
	}
	defer questionStmt.Close()

	answerStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO answers (id, question_id, position, text, is_abstain)
		VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare answer statement: %w", err)
	}
	defer answerStmt.Close()

	for i := range poll.Questions {
		q := &poll.Questions[i]
		if q.ID == uuid.Nil {
			q.ID = uuid.New()
		}
		q.PollID = poll.ID
		if _, err := questionStmt.ExecContext(ctx, q.ID, q.PollID, q.Position, q.Text); err != nil {
			return fmt.Errorf("failed to insert question: %w", err)
		}

		for j := range q.Answers {
			a := &q.Answers[j]
			if a.ID == uuid.Nil {
				a.ID = uuid.New()
			}
			a.QuestionID = q.ID
			if _, err := answerStmt.ExecContext(ctx, a.ID, a.QuestionID, a.Position, a.Text, a.IsAbstain); err != nil {
				return fmt.Errorf("failed to insert answer: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *pollRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Poll, error) {
	query := `SELECT ` + pollColumns + ` FROM polls WHERE id = $1`

	poll, err := scanPoll(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPollNotFound
		}
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}

	if err := r.fetchDetails(ctx, poll); err != nil {
		return nil, err
	}
	return poll, nil
}

func (r *pollRepository) ListOpen(ctx context.Context) ([]*domain.Poll, error) {
	query := `SELECT ` + pollColumns + ` FROM polls WHERE status = 'open' ORDER BY date_end`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list open polls: %w", err)
	}
	defer rows.Close()

	var polls []*domain.Poll
	for rows.Next() {
		poll, err := scanPoll(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan poll: %w", err)
		}
		polls = append(polls, poll)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating polls: %w", err)
	}

	for _, poll := range polls {
		if err := r.fetchDetails(ctx, poll); err != nil {
			return nil, err
		}
	}
	return polls, nil
}

func (r *pollRepository) MarkOpen(ctx context.Context, id uuid.UUID, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		status   domain.PollStatus
		joinMode domain.JoinMode
	)
	err = tx.QueryRowContext(ctx, `SELECT status, join_mode FROM polls WHERE id = $1 FOR UPDATE`, id).Scan(&status, &joinMode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrPollNotFound
		}
		return fmt.Errorf("failed to lock poll: %w", err)
	}
	if status != domain.PollStatusDraft {
		return fmt.Errorf("%w: poll is %s", domain.ErrInvalidTransition, status)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE polls SET status = 'open', opened_at = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("failed to open poll: %w", err)
	}

	if joinMode == domain.JoinModeClosed {
		// Without target groups every member is captured.
		querySnapshot := `
			INSERT INTO eligibility_snapshots (poll_id, member_id)
			SELECT $1, m.id
			FROM members m
			WHERE NOT EXISTS (SELECT 1 FROM poll_target_groups WHERE poll_id = $1)
			   OR EXISTS (
				SELECT 1
				FROM member_groups mg
				JOIN poll_target_groups ptg ON ptg.group_id = mg.group_id
				WHERE ptg.poll_id = $1 AND mg.member_id = m.id
			   )
		`
		if _, err := tx.ExecContext(ctx, querySnapshot, id); err != nil {
			return fmt.Errorf("failed to capture eligibility snapshot: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *pollRepository) MarkClosed(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE polls SET status = 'closed', closed_at = $2 WHERE id = $1 AND status = 'open'`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to close poll: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 1 {
		return nil
	}

	var status domain.PollStatus
	err = r.db.QueryRowContext(ctx, `SELECT status FROM polls WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrPollNotFound
		}
		return fmt.Errorf("failed to get poll status: %w", err)
	}
	return fmt.Errorf("%w: poll is %s", domain.ErrInvalidTransition, status)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPoll(row rowScanner) (*domain.Poll, error) {
	var (
		poll     domain.Poll
		openedAt sql.NullTime
		closedAt sql.NullTime
	)
	err := row.Scan(
		&poll.ID, &poll.Title, &poll.Description, &poll.Status, &poll.DateStart, &poll.DateEnd,
		&poll.EndsOnDate, &poll.JoinMode, &poll.VoteMode, &poll.CreatedAt, &openedAt, &closedAt,
	)
	if err != nil {
		return nil, err
	}
	if openedAt.Valid {
		poll.OpenedAt = &openedAt.Time
	}
	if closedAt.Valid {
		poll.ClosedAt = &closedAt.Time
	}
	return &poll, nil
}

func (r *pollRepository) fetchDetails(ctx context.Context, poll *domain.Poll) error {
	var groups []string
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(array_agg(group_id::text ORDER BY group_id), '{}') FROM poll_target_groups WHERE poll_id = $1`,
		poll.ID,
	).Scan(pq.Array(&groups))
	if err != nil {
		return fmt.Errorf("failed to get target groups: %w", err)
	}
	poll.TargetGroups = nil
	for _, g := range groups {
		id, err := uuid.Parse(g)
		if err != nil {
			return fmt.Errorf("failed to parse target group: %w", err)
		}
		poll.TargetGroups = append(poll.TargetGroups, id)
	}

	questions, err := r.fetchQuestions(ctx, poll.ID)
	if err != nil {
		return err
	}
	poll.Questions = questions
	return nil
}

func (r *pollRepository) fetchQuestions(ctx context.Context, pollID uuid.UUID) ([]domain.Question, error) {
	query := `
		SELECT q.id, q.position, q.text, a.id, a.position, a.text, a.is_abstain
		FROM questions q
		JOIN answers a ON a.question_id = q.id
		WHERE q.poll_id = $1
		ORDER BY q.position, a.position
	`
	rows, err := r.db.QueryContext(ctx, query, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var (
			q domain.Question
			a domain.Answer
		)
		if err := rows.Scan(&q.ID, &q.Position, &q.Text, &a.ID, &a.Position, &a.Text, &a.IsAbstain); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		if n := len(questions); n == 0 || questions[n-1].ID != q.ID {
			q.PollID = pollID
			questions = append(questions, q)
		}
		a.QuestionID = q.ID
		last := &questions[len(questions)-1]
		last.Answers = append(last.Answers, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating questions: %w", err)
	}
	return questions, nil
}
