// Package engagement: repository.go is the storage layer for points,
// levels and badges.
package engagement

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"civicpulse.app/engagement/internal/common"
	"civicpulse.app/engagement/internal/db/postgres"
)

// Repository is implemented by the Postgres and the embedded store.
type Repository interface {
	// EnsureMember creates the member or refreshes its profile fields.
	// Points and level of an existing member are left untouched.
	EnsureMember(ctx context.Context, m *Member) error
	GetMember(ctx context.Context, id uuid.UUID) (*Member, error)

	// AddPoints appends tx to the ledger and increments the member's total
	// in one atomic step. A deduplicated transaction that already exists
	// leaves both untouched and reports Applied=false.
	AddPoints(ctx context.Context, tx *PointTransaction) (AddResult, error)
	// RaiseLevel sets level if it is higher than the stored one.
	RaiseLevel(ctx context.Context, memberID uuid.UUID, level int) (bool, error)
	ListTransactions(ctx context.Context, memberID uuid.UUID, limit int) ([]*PointTransaction, error)

	CountContributions(ctx context.Context, memberID uuid.UUID, kind ContributionKind) (int64, error)

	// InsertBadge grants a badge. It returns false when the member already holds it.
	InsertBadge(ctx context.Context, b *MemberBadge) (bool, error)
	ListBadges(ctx context.Context, memberID uuid.UUID) ([]*MemberBadge, error)

	// TopMembers returns members ordered by total points, then by join date.
	TopMembers(ctx context.Context, limit int) ([]*Member, error)
}

// PostgresRepository works with the members, point_transactions and
// member_badges tables, and reads the petition collections for counts.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates the SQL-backed repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// contributionCounts are fixed queries; kind never reaches SQL text.
var contributionCounts = map[ContributionKind]string{
	ContributionPetitions: `SELECT COUNT(*) FROM petitions WHERE creator_id = $1`,
	ContributionVotes:     `SELECT COUNT(*) FROM votes WHERE member_id = $1`,
	ContributionComments:  `SELECT COUNT(*) FROM comments WHERE author_id = $1`,
}

// EnsureMember creates the member or refreshes its profile.
func (r *PostgresRepository) EnsureMember(ctx context.Context, m *Member) error {
	query := `
		INSERT INTO members (id, display_name, avatar_url, total_points, level, created_at)
		VALUES ($1, $2, $3, 0, 1, $4)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			avatar_url = EXCLUDED.avatar_url,
			updated_at = NOW()
		RETURNING total_points, level, created_at
	`
	err := r.db.QueryRow(ctx, query, m.ID, m.DisplayName, m.AvatarURL, m.CreatedAt).
		Scan(&m.TotalPoints, &m.Level, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("ensure member: %w", err)
	}
	return nil
}

// GetMember returns a member by id.
func (r *PostgresRepository) GetMember(ctx context.Context, id uuid.UUID) (*Member, error) {
	query := `
		SELECT id, display_name, avatar_url, total_points, level, created_at
		FROM members
		WHERE id = $1
	`
	var m Member
	err := r.db.QueryRow(ctx, query, id).
		Scan(&m.ID, &m.DisplayName, &m.AvatarURL, &m.TotalPoints, &m.Level, &m.CreatedAt)
	if postgres.IsNoRows(err) {
		return nil, common.ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return &m, nil
}

// AddPoints increments the total and appends the ledger row in one
// transaction. The UPDATE takes the member row lock first, so concurrent
// awards for the same member serialize on it and no increment is lost.
func (r *PostgresRepository) AddPoints(ctx context.Context, ptx *PointTransaction) (AddResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return AddResult{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var res AddResult
	err = tx.QueryRow(ctx, `
		UPDATE members
		SET total_points = total_points + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING total_points, level
	`, ptx.MemberID, ptx.Points).Scan(&res.NewTotal, &res.Level)
	if postgres.IsNoRows(err) {
		return AddResult{}, common.ErrMemberNotFound
	}
	if err != nil {
		return AddResult{}, fmt.Errorf("increment total: %w", err)
	}

	// uq_point_transactions_reference turns a repeated referenced award into a no-op
	tag, err := tx.Exec(ctx, `
		INSERT INTO point_transactions (id, member_id, points, action, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING
	`, ptx.ID, ptx.MemberID, ptx.Points, ptx.Action, ptx.ReferenceID, ptx.CreatedAt)
	if err != nil {
		return AddResult{}, fmt.Errorf("insert point transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// rollback undoes the increment
		return AddResult{Applied: false, NewTotal: res.NewTotal - ptx.Points, Level: res.Level}, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return AddResult{}, fmt.Errorf("commit award: %w", err)
	}
	res.Applied = true
	return res, nil
}

// RaiseLevel only ever moves the level up.
func (r *PostgresRepository) RaiseLevel(ctx context.Context, memberID uuid.UUID, level int) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE members SET level = $2, updated_at = NOW()
		WHERE id = $1 AND level < $2
	`, memberID, level)
	if err != nil {
		return false, fmt.Errorf("raise level: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListTransactions returns the ledger of a member, newest first.
func (r *PostgresRepository) ListTransactions(ctx context.Context, memberID uuid.UUID, limit int) ([]*PointTransaction, error) {
	query := `
		SELECT id, member_id, points, action, reference_id, created_at
		FROM point_transactions
		WHERE member_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, memberID, limit)
	if err != nil {
		return nil, fmt.Errorf("list point transactions: %w", err)
	}
	defer rows.Close()

	var out []*PointTransaction
	for rows.Next() {
		var t PointTransaction
		if err := rows.Scan(&t.ID, &t.MemberID, &t.Points, &t.Action, &t.ReferenceID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan point transaction: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// CountContributions counts the member's petitions, votes or comments.
func (r *PostgresRepository) CountContributions(ctx context.Context, memberID uuid.UUID, kind ContributionKind) (int64, error) {
	query, ok := contributionCounts[kind]
	if !ok {
		return 0, fmt.Errorf("unknown contribution kind %q", kind)
	}
	var n int64
	if err := r.db.QueryRow(ctx, query, memberID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", kind, err)
	}
	return n, nil
}

// InsertBadge grants a badge once.
func (r *PostgresRepository) InsertBadge(ctx context.Context, b *MemberBadge) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO member_badges (member_id, badge_id, earned_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (member_id, badge_id) DO NOTHING
	`, b.MemberID, b.BadgeID, b.EarnedAt)
	if err != nil {
		return false, fmt.Errorf("insert badge: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListBadges returns the badges of a member in the order they were earned.
func (r *PostgresRepository) ListBadges(ctx context.Context, memberID uuid.UUID) ([]*MemberBadge, error) {
	rows, err := r.db.Query(ctx, `
		SELECT member_id, badge_id, earned_at
		FROM member_badges
		WHERE member_id = $1
		ORDER BY earned_at, badge_id
	`, memberID)
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	defer rows.Close()

	var out []*MemberBadge
	for rows.Next() {
		var b MemberBadge
		if err := rows.Scan(&b.MemberID, &b.BadgeID, &b.EarnedAt); err != nil {
			return nil, fmt.Errorf("scan badge: %w", err)
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

// TopMembers returns the leaderboard head.
func (r *PostgresRepository) TopMembers(ctx context.Context, limit int) ([]*Member, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, display_name, avatar_url, total_points, level, created_at
		FROM members
		ORDER BY total_points DESC, created_at ASC, id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var out []*Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.DisplayName, &m.AvatarURL, &m.TotalPoints, &m.Level, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
