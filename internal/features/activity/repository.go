// Package activity: repository.go stores notices in the activities table
// or in the embedded store.
package activity

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"civicpulse.app/engagement/internal/db/badgerdb"
)

// Repository persists activity notices.
type Repository interface {
	Insert(ctx context.Context, n *Notice) error
	ListByMember(ctx context.Context, memberID uuid.UUID, limit int) ([]*Notice, error)
}

// PostgresRepository works with the activities table.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates the SQL-backed repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert appends a notice.
func (r *PostgresRepository) Insert(ctx context.Context, n *Notice) error {
	query := `
		INSERT INTO activities (id, member_id, kind, title, body, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query, n.ID, n.MemberID, n.Kind, n.Title, n.Body, n.ReferenceID, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// ListByMember returns the latest notices of a member, newest first.
func (r *PostgresRepository) ListByMember(ctx context.Context, memberID uuid.UUID, limit int) ([]*Notice, error) {
	query := `
		SELECT id, member_id, kind, title, body, reference_id, created_at
		FROM activities
		WHERE member_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, memberID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var out []*Notice
	for rows.Next() {
		var n Notice
		if err := rows.Scan(&n.ID, &n.MemberID, &n.Kind, &n.Title, &n.Body, &n.ReferenceID, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

// BadgerRepository keeps notices under activity/<member>/<unix nanos>/<id>.
type BadgerRepository struct {
	db *badgerdb.DB
}

// NewBadgerRepository creates the embedded repository.
func NewBadgerRepository(db *badgerdb.DB) *BadgerRepository {
	return &BadgerRepository{db: db}
}

func noticeKey(n *Notice) []byte {
	return badgerdb.Key("activity", n.MemberID.String(), fmt.Sprintf("%020d", n.CreatedAt.UnixNano()), n.ID.String())
}

// Insert appends a notice.
func (r *BadgerRepository) Insert(ctx context.Context, n *Notice) error {
	return r.db.Update(ctx, func(txn *badger.Txn) error {
		return badgerdb.SetJSON(txn, noticeKey(n), n)
	})
}

// ListByMember returns the latest notices of a member, newest first.
func (r *BadgerRepository) ListByMember(ctx context.Context, memberID uuid.UUID, limit int) ([]*Notice, error) {
	var out []*Notice
	err := r.db.View(ctx, func(txn *badger.Txn) error {
		return badgerdb.ScanJSON(txn, badgerdb.Prefix("activity", memberID.String()), true, func(n *Notice) bool {
			out = append(out, n)
			return len(out) < limit
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return out, nil
}
