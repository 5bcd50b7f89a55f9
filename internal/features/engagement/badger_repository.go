// Package engagement: badger_repository.go keeps the same records in the
// embedded store.
//
// Key layout:
//
//	member/<member>                           Member
//	ptx/<member>/<unix nanos>/<tx>            PointTransaction
//	ptxref/<member>/<action>/<reference>      marker for deduplicated awards
//	contrib/<kind>/<member>/<entity>          marker per petition, vote or comment
//	badge/<member>/<badge>                    MemberBadge
//
// The embedded store has no petition tables of its own, so an applied
// petition_created, petition_voted or comment_posted award also records the
// matching contribution marker in the same transaction.
package engagement

import (
	"context"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"civicpulse.app/engagement/internal/common"
	"civicpulse.app/engagement/internal/db/badgerdb"
)

// BadgerRepository implements Repository on badgerdb.
type BadgerRepository struct {
	db *badgerdb.DB
}

// NewBadgerRepository creates the embedded repository.
func NewBadgerRepository(db *badgerdb.DB) *BadgerRepository {
	return &BadgerRepository{db: db}
}

var contributionByAction = map[Action]ContributionKind{
	ActionPetitionCreated: ContributionPetitions,
	ActionPetitionVoted:   ContributionVotes,
	ActionCommentPosted:   ContributionComments,
}

func memberKey(id uuid.UUID) []byte {
	return badgerdb.Key("member", id.String())
}

func transactionKey(t *PointTransaction) []byte {
	return badgerdb.Key("ptx", t.MemberID.String(), fmt.Sprintf("%020d", t.CreatedAt.UnixNano()), t.ID.String())
}

func referenceKey(t *PointTransaction) []byte {
	return badgerdb.Key("ptxref", t.MemberID.String(), string(t.Action), *t.ReferenceID)
}

func contributionKey(kind ContributionKind, memberID uuid.UUID, entity string) []byte {
	return badgerdb.Key("contrib", string(kind), memberID.String(), entity)
}

func badgeKey(memberID uuid.UUID, badgeID string) []byte {
	return badgerdb.Key("badge", memberID.String(), badgeID)
}

// EnsureMember creates the member or refreshes its profile.
func (r *BadgerRepository) EnsureMember(ctx context.Context, m *Member) error {
	return r.db.Update(ctx, func(txn *badger.Txn) error {
		var stored Member
		found, err := badgerdb.GetJSON(txn, memberKey(m.ID), &stored)
		if err != nil {
			return fmt.Errorf("get member: %w", err)
		}
		if found {
			stored.DisplayName = m.DisplayName
			stored.AvatarURL = m.AvatarURL
		} else {
			stored = Member{
				ID:          m.ID,
				DisplayName: m.DisplayName,
				AvatarURL:   m.AvatarURL,
				Level:       1,
				CreatedAt:   m.CreatedAt,
			}
		}
		if err := badgerdb.SetJSON(txn, memberKey(m.ID), &stored); err != nil {
			return err
		}
		*m = stored
		return nil
	})
}

// GetMember returns a member by id.
func (r *BadgerRepository) GetMember(ctx context.Context, id uuid.UUID) (*Member, error) {
	var m Member
	err := r.db.View(ctx, func(txn *badger.Txn) error {
		found, err := badgerdb.GetJSON(txn, memberKey(id), &m)
		if err != nil {
			return fmt.Errorf("get member: %w", err)
		}
		if !found {
			return common.ErrMemberNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// AddPoints reads the member record and writes it back in the same
// transaction, so a concurrent award conflicts and is retried against the
// new total.
func (r *BadgerRepository) AddPoints(ctx context.Context, ptx *PointTransaction) (AddResult, error) {
	var res AddResult
	err := r.db.Update(ctx, func(txn *badger.Txn) error {
		var m Member
		found, err := badgerdb.GetJSON(txn, memberKey(ptx.MemberID), &m)
		if err != nil {
			return fmt.Errorf("get member: %w", err)
		}
		if !found {
			return common.ErrMemberNotFound
		}

		if ptx.deduplicated() {
			exists, err := badgerdb.Exists(txn, referenceKey(ptx))
			if err != nil {
				return err
			}
			if exists {
				res = AddResult{Applied: false, NewTotal: m.TotalPoints, Level: m.Level}
				return nil
			}
			if err := txn.Set(referenceKey(ptx), nil); err != nil {
				return err
			}
		}

		m.TotalPoints += ptx.Points
		if err := badgerdb.SetJSON(txn, memberKey(m.ID), &m); err != nil {
			return err
		}
		if err := badgerdb.SetJSON(txn, transactionKey(ptx), ptx); err != nil {
			return err
		}
		if kind, ok := contributionByAction[ptx.Action]; ok {
			// one marker per petition created or voted on, one per comment
			entity := ptx.ID.String()
			if ptx.deduplicated() {
				entity = *ptx.ReferenceID
			}
			if err := txn.Set(contributionKey(kind, m.ID, entity), nil); err != nil {
				return err
			}
		}
		res = AddResult{Applied: true, NewTotal: m.TotalPoints, Level: m.Level}
		return nil
	})
	if err != nil {
		return AddResult{}, err
	}
	return res, nil
}

// RaiseLevel only ever moves the level up.
func (r *BadgerRepository) RaiseLevel(ctx context.Context, memberID uuid.UUID, level int) (bool, error) {
	var raised bool
	err := r.db.Update(ctx, func(txn *badger.Txn) error {
		raised = false
		var m Member
		found, err := badgerdb.GetJSON(txn, memberKey(memberID), &m)
		if err != nil {
			return err
		}
		if !found {
			return common.ErrMemberNotFound
		}
		if m.Level >= level {
			return nil
		}
		m.Level = level
		raised = true
		return badgerdb.SetJSON(txn, memberKey(memberID), &m)
	})
	if err != nil {
		return false, fmt.Errorf("raise level: %w", err)
	}
	return raised, nil
}

// ListTransactions returns the ledger of a member, newest first.
func (r *BadgerRepository) ListTransactions(ctx context.Context, memberID uuid.UUID, limit int) ([]*PointTransaction, error) {
	var out []*PointTransaction
	err := r.db.View(ctx, func(txn *badger.Txn) error {
		return badgerdb.ScanJSON(txn, badgerdb.Prefix("ptx", memberID.String()), true, func(t *PointTransaction) bool {
			out = append(out, t)
			return len(out) < limit
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list point transactions: %w", err)
	}
	return out, nil
}

// CountContributions counts contribution markers.
func (r *BadgerRepository) CountContributions(ctx context.Context, memberID uuid.UUID, kind ContributionKind) (int64, error) {
	var n int64
	err := r.db.View(ctx, func(txn *badger.Txn) error {
		var err error
		n, err = badgerdb.Count(txn, badgerdb.Prefix("contrib", string(kind), memberID.String()))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", kind, err)
	}
	return n, nil
}

// InsertBadge grants a badge once.
func (r *BadgerRepository) InsertBadge(ctx context.Context, b *MemberBadge) (bool, error) {
	var inserted bool
	err := r.db.Update(ctx, func(txn *badger.Txn) error {
		inserted = false
		exists, err := badgerdb.Exists(txn, badgeKey(b.MemberID, b.BadgeID))
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		inserted = true
		return badgerdb.SetJSON(txn, badgeKey(b.MemberID, b.BadgeID), b)
	})
	if err != nil {
		return false, fmt.Errorf("insert badge: %w", err)
	}
	return inserted, nil
}

// ListBadges returns the badges of a member in the order they were earned.
func (r *BadgerRepository) ListBadges(ctx context.Context, memberID uuid.UUID) ([]*MemberBadge, error) {
	var out []*MemberBadge
	err := r.db.View(ctx, func(txn *badger.Txn) error {
		return badgerdb.ScanJSON(txn, badgerdb.Prefix("badge", memberID.String()), false, func(b *MemberBadge) bool {
			out = append(out, b)
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EarnedAt.Before(out[j].EarnedAt)
	})
	return out, nil
}

// TopMembers scans every member and sorts in memory.
func (r *BadgerRepository) TopMembers(ctx context.Context, limit int) ([]*Member, error) {
	var all []*Member
	err := r.db.View(ctx, func(txn *badger.Txn) error {
		return badgerdb.ScanJSON(txn, badgerdb.Prefix("member"), false, func(m *Member) bool {
			all = append(all, m)
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].TotalPoints != all[j].TotalPoints {
			return all[i].TotalPoints > all[j].TotalPoints
		}
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID.String() < all[j].ID.String()
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
