// Package moderation: repository.go reads petitions and writes the
// moderation log.
package moderation

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
	// SyncPetition inserts the petition, or refreshes title, counters and
	// last activity of an existing one. The stored status is never changed
	// by a sync. Returns ErrMemberNotFound for an unknown creator.
	SyncPetition(ctx context.Context, p *Petition) (*Petition, error)

	ListPending(ctx context.Context) ([]*Petition, error)
	GetPetition(ctx context.Context, id uuid.UUID) (*Petition, error)

	// ApplyDecision logs entry and moves the petition from pending to status
	// in one transaction. It returns false, and writes nothing, when the log
	// already holds this action for the petition or the petition has left
	// pending.
	ApplyDecision(ctx context.Context, status Status, entry *LogEntry) (bool, error)

	// UnsettledEscalations returns escalated petitions whose creator bonus
	// has not been confirmed yet, oldest escalation first.
	UnsettledEscalations(ctx context.Context) ([]*Petition, error)
	// SettleEscalation records that the creator bonus was paid.
	SettleEscalation(ctx context.Context, petitionID uuid.UUID) error

	ListLog(ctx context.Context, petitionID uuid.UUID) ([]*LogEntry, error)
	CountByAction(ctx context.Context) (map[ActionType]int64, error)
}

// PostgresRepository works with the petitions and moderation_logs tables.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates the SQL-backed repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const petitionColumns = `id, creator_id, title, upvotes, downvotes, status, last_activity_at, created_at`

// SyncPetition upserts the platform's copy of a petition.
func (r *PostgresRepository) SyncPetition(ctx context.Context, p *Petition) (*Petition, error) {
	var out Petition
	err := r.db.QueryRow(ctx, `
		INSERT INTO petitions (id, creator_id, title, upvotes, downvotes, status, last_activity_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			upvotes = EXCLUDED.upvotes,
			downvotes = EXCLUDED.downvotes,
			last_activity_at = EXCLUDED.last_activity_at,
			updated_at = NOW()
		RETURNING `+petitionColumns,
		p.ID, p.CreatorID, p.Title, p.Upvotes, p.Downvotes, p.Status, p.LastActivityAt, p.CreatedAt,
	).Scan(&out.ID, &out.CreatorID, &out.Title, &out.Upvotes, &out.Downvotes,
		&out.Status, &out.LastActivityAt, &out.CreatedAt)
	if postgres.IsForeignKeyViolation(err) {
		return nil, common.ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sync petition: %w", err)
	}
	return &out, nil
}

// ListPending returns every pending petition, oldest first.
func (r *PostgresRepository) ListPending(ctx context.Context) ([]*Petition, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+petitionColumns+`
		FROM petitions
		WHERE status = 'pending'
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list pending petitions: %w", err)
	}
	defer rows.Close()

	var out []*Petition
	for rows.Next() {
		var p Petition
		if err := rows.Scan(&p.ID, &p.CreatorID, &p.Title, &p.Upvotes, &p.Downvotes,
			&p.Status, &p.LastActivityAt, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan petition: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// GetPetition returns a petition by id.
func (r *PostgresRepository) GetPetition(ctx context.Context, id uuid.UUID) (*Petition, error) {
	var p Petition
	err := r.db.QueryRow(ctx, `
		SELECT `+petitionColumns+`
		FROM petitions
		WHERE id = $1
	`, id).Scan(&p.ID, &p.CreatorID, &p.Title, &p.Upvotes, &p.Downvotes,
		&p.Status, &p.LastActivityAt, &p.CreatedAt)
	if postgres.IsNoRows(err) {
		return nil, common.ErrPetitionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get petition: %w", err)
	}
	return &p, nil
}

// ApplyDecision inserts the log row first so that a concurrent sweep
// applying the same action blocks on the unique index, then makes the
// conditional status write.
func (r *PostgresRepository) ApplyDecision(ctx context.Context, status Status, entry *LogEntry) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO moderation_logs (id, petition_id, action_type, reason, triggered_by, metadata, performed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (petition_id, action_type) DO NOTHING
	`, entry.ID, entry.PetitionID, entry.ActionType, entry.Reason, entry.TriggeredBy, entry.Metadata, entry.PerformedAt)
	if err != nil {
		return false, fmt.Errorf("insert moderation log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	tag, err = tx.Exec(ctx, `
		UPDATE petitions SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, entry.PetitionID, status)
	if err != nil {
		return false, fmt.Errorf("update petition status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit moderation: %w", err)
	}
	return true, nil
}

// UnsettledEscalations joins the escalated log rows still waiting for
// their bonus with their petitions.
func (r *PostgresRepository) UnsettledEscalations(ctx context.Context) ([]*Petition, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.id, p.creator_id, p.title, p.upvotes, p.downvotes, p.status, p.last_activity_at, p.created_at
		FROM moderation_logs l
		JOIN petitions p ON p.id = l.petition_id
		WHERE l.action_type = 'escalated' AND NOT l.bonus_settled
		ORDER BY l.performed_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list unsettled escalations: %w", err)
	}
	defer rows.Close()

	var out []*Petition
	for rows.Next() {
		var p Petition
		if err := rows.Scan(&p.ID, &p.CreatorID, &p.Title, &p.Upvotes, &p.Downvotes,
			&p.Status, &p.LastActivityAt, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan petition: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// SettleEscalation flags the escalated log row as paid.
func (r *PostgresRepository) SettleEscalation(ctx context.Context, petitionID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE moderation_logs SET bonus_settled = TRUE
		WHERE petition_id = $1 AND action_type = 'escalated'
	`, petitionID)
	if err != nil {
		return fmt.Errorf("settle escalation: %w", err)
	}
	return nil
}

// ListLog returns the log of a petition, newest first.
func (r *PostgresRepository) ListLog(ctx context.Context, petitionID uuid.UUID) ([]*LogEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, petition_id, action_type, reason, triggered_by, metadata, performed_at
		FROM moderation_logs
		WHERE petition_id = $1
		ORDER BY performed_at DESC
	`, petitionID)
	if err != nil {
		return nil, fmt.Errorf("list moderation log: %w", err)
	}
	defer rows.Close()

	var out []*LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.PetitionID, &e.ActionType, &e.Reason, &e.TriggeredBy,
			&e.Metadata, &e.PerformedAt); err != nil {
			return nil, fmt.Errorf("scan moderation log: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// CountByAction aggregates the whole log.
func (r *PostgresRepository) CountByAction(ctx context.Context) (map[ActionType]int64, error) {
	rows, err := r.db.Query(ctx, `
		SELECT action_type, COUNT(*)
		FROM moderation_logs
		GROUP BY action_type
	`)
	if err != nil {
		return nil, fmt.Errorf("count moderation log: %w", err)
	}
	defer rows.Close()

	out := make(map[ActionType]int64)
	for rows.Next() {
		var (
			action ActionType
			n      int64
		)
		if err := rows.Scan(&action, &n); err != nil {
			return nil, fmt.Errorf("scan moderation count: %w", err)
		}
		out[action] = n
	}
	return out, rows.Err()
}
