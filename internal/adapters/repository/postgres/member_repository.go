package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/vncsmyrnk/ballot/internal/core/domain"
)

// MemberRepository reads members, their group memberships and the
// eligibility snapshots taken when closed polls open.
type MemberRepository struct {
	db *sql.DB
}

func NewMemberRepository(db *sql.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

func (r *MemberRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Member, error) {
	query := `
		SELECT id, email, nickname, first_name, last_name, profile, created_at
		FROM members
		WHERE id = $1
	`
	var (
		member  domain.Member
		profile []byte
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&member.ID, &member.Email, &member.Nickname, &member.FirstName, &member.LastName, &profile, &member.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	if err := json.Unmarshal(profile, &member.Profile); err != nil {
		return nil, fmt.Errorf("failed to decode member profile: %w", err)
	}
	return &member, nil
}

// Save creates the member or replaces its profile.
func (r *MemberRepository) Save(ctx context.Context, member *domain.Member) error {
	if member.ID == uuid.Nil {
		member.ID = uuid.New()
	}
	profile, err := json.Marshal(member.Profile)
	if err != nil {
		return fmt.Errorf("failed to encode member profile: %w", err)
	}
	if member.Profile == nil {
		profile = []byte("{}")
	}

	query := `
		INSERT INTO members (id, email, nickname, first_name, last_name, profile)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET email = EXCLUDED.email,
		    nickname = EXCLUDED.nickname,
		    first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name,
		    profile = EXCLUDED.profile
		RETURNING created_at
	`
	err = r.db.QueryRowContext(ctx, query,
		member.ID, member.Email, member.Nickname, member.FirstName, member.LastName, profile,
	).Scan(&member.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save member: %w", err)
	}
	return nil
}

func (r *MemberRepository) AddToGroup(ctx context.Context, groupID, memberID uuid.UUID) error {
	query := `INSERT INTO member_groups (group_id, member_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, groupID, memberID); err != nil {
		return fmt.Errorf("failed to add member to group: %w", err)
	}
	return nil
}

func (r *MemberRepository) IsMemberOfAny(ctx context.Context, memberID uuid.UUID, groups []uuid.UUID) (bool, error) {
	if len(groups) == 0 {
		return false, nil
	}
	query := `SELECT EXISTS (SELECT 1 FROM member_groups WHERE member_id = $1 AND group_id = ANY($2::uuid[]))`
	var ok bool
	if err := r.db.QueryRowContext(ctx, query, memberID, pq.Array(uuidStrings(groups))).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to check group membership: %w", err)
	}
	return ok, nil
}

func (r *MemberRepository) CountMembers(ctx context.Context, groups []uuid.UUID) (int64, error) {
	var (
		n   int64
		err error
	)
	if len(groups) == 0 {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM members`).Scan(&n)
	} else {
		query := `SELECT COUNT(DISTINCT member_id) FROM member_groups WHERE group_id = ANY($1::uuid[])`
		err = r.db.QueryRowContext(ctx, query, pq.Array(uuidStrings(groups))).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return n, nil
}

func (r *MemberRepository) Contains(ctx context.Context, pollID, memberID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM eligibility_snapshots WHERE poll_id = $1 AND member_id = $2)`
	var ok bool
	if err := r.db.QueryRowContext(ctx, query, pollID, memberID).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to check eligibility snapshot: %w", err)
	}
	return ok, nil
}

func (r *MemberRepository) Size(ctx context.Context, pollID uuid.UUID) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM eligibility_snapshots WHERE poll_id = $1`, pollID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to size eligibility snapshot: %w", err)
	}
	return n, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
