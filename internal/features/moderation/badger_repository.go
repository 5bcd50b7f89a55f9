// Package moderation: badger_repository.go keeps petitions under
// petition/<id> and log entries under modlog/<petition>/<action>, so the
// key itself enforces one entry per (petition, action). An escalation also
// writes modbonus/<petition>, deleted once the creator bonus is paid.
package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

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

func petitionKey(id uuid.UUID) []byte {
	return badgerdb.Key("petition", id.String())
}

func logKey(petitionID uuid.UUID, action ActionType) []byte {
	return badgerdb.Key("modlog", petitionID.String(), string(action))
}

func bonusKey(petitionID uuid.UUID) []byte {
	return badgerdb.Key("modbonus", petitionID.String())
}

// SyncPetition stores a new petition or refreshes an existing one, keeping
// its status.
func (r *BadgerRepository) SyncPetition(ctx context.Context, p *Petition) (*Petition, error) {
	var out Petition
	err := r.db.Update(ctx, func(txn *badger.Txn) error {
		known, err := badgerdb.Exists(txn, badgerdb.Key("member", p.CreatorID.String()))
		if err != nil {
			return err
		}
		if !known {
			return common.ErrMemberNotFound
		}

		out = *p
		var stored Petition
		found, err := badgerdb.GetJSON(txn, petitionKey(p.ID), &stored)
		if err != nil {
			return err
		}
		if found {
			out.CreatorID = stored.CreatorID
			out.Status = stored.Status
			out.CreatedAt = stored.CreatedAt
		}
		return badgerdb.SetJSON(txn, petitionKey(p.ID), &out)
	})
	if err != nil {
		if errors.Is(err, common.ErrMemberNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("sync petition: %w", err)
	}
	return &out, nil
}

// ListPending returns every pending petition, oldest first.
func (r *BadgerRepository) ListPending(ctx context.Context) ([]*Petition, error) {
	var out []*Petition
	err := r.db.View(ctx, func(txn *badger.Txn) error {
		return badgerdb.ScanJSON(txn, badgerdb.Prefix("petition"), false, func(p *Petition) bool {
			if p.Status == StatusPending {
				out = append(out, p)
			}
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list pending petitions: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// GetPetition returns a petition by id.
func (r *BadgerRepository) GetPetition(ctx context.Context, id uuid.UUID) (*Petition, error) {
	var p Petition
	err := r.db.View(ctx, func(txn *badger.Txn) error {
		found, err := badgerdb.GetJSON(txn, petitionKey(id), &p)
		if err != nil {
			return fmt.Errorf("get petition: %w", err)
		}
		if !found {
			return common.ErrPetitionNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ApplyDecision checks the log key and the petition status, then writes
// both in the same transaction.
func (r *BadgerRepository) ApplyDecision(ctx context.Context, status Status, entry *LogEntry) (bool, error) {
	var applied bool
	err := r.db.Update(ctx, func(txn *badger.Txn) error {
		applied = false
		logged, err := badgerdb.Exists(txn, logKey(entry.PetitionID, entry.ActionType))
		if err != nil {
			return err
		}
		if logged {
			return nil
		}

		var p Petition
		found, err := badgerdb.GetJSON(txn, petitionKey(entry.PetitionID), &p)
		if err != nil {
			return err
		}
		if !found {
			return common.ErrPetitionNotFound
		}
		if p.Status != StatusPending {
			return nil
		}

		p.Status = status
		if err := badgerdb.SetJSON(txn, petitionKey(p.ID), &p); err != nil {
			return err
		}
		if err := badgerdb.SetJSON(txn, logKey(entry.PetitionID, entry.ActionType), entry); err != nil {
			return err
		}
		if entry.ActionType == ActionEscalated {
			if err := badgerdb.SetJSON(txn, bonusKey(entry.PetitionID), entry.PerformedAt); err != nil {
				return err
			}
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("apply moderation: %w", err)
	}
	return applied, nil
}

// UnsettledEscalations loads the petition behind every modbonus key.
func (r *BadgerRepository) UnsettledEscalations(ctx context.Context) ([]*Petition, error) {
	type pending struct {
		petition    *Petition
		escalatedAt time.Time
	}
	var found []pending
	err := r.db.View(ctx, func(txn *badger.Txn) error {
		return badgerdb.Scan(txn, badgerdb.Prefix("modbonus"), false, func(key, val []byte) (bool, error) {
			var at time.Time
			if err := json.Unmarshal(val, &at); err != nil {
				return false, fmt.Errorf("decode %s: %w", key, err)
			}
			id, err := uuid.Parse(strings.TrimPrefix(string(key), string(badgerdb.Prefix("modbonus"))))
			if err != nil {
				return false, fmt.Errorf("parse %s: %w", key, err)
			}
			var p Petition
			ok, err := badgerdb.GetJSON(txn, petitionKey(id), &p)
			if err != nil {
				return false, err
			}
			if ok {
				found = append(found, pending{petition: &p, escalatedAt: at})
			}
			return true, nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list unsettled escalations: %w", err)
	}
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].escalatedAt.Before(found[j].escalatedAt)
	})
	out := make([]*Petition, 0, len(found))
	for _, f := range found {
		out = append(out, f.petition)
	}
	return out, nil
}

// SettleEscalation drops the modbonus key.
func (r *BadgerRepository) SettleEscalation(ctx context.Context, petitionID uuid.UUID) error {
	err := r.db.Update(ctx, func(txn *badger.Txn) error {
		return txn.Delete(bonusKey(petitionID))
	})
	if err != nil {
		return fmt.Errorf("settle escalation: %w", err)
	}
	return nil
}

// ListLog returns the log of a petition, newest first.
func (r *BadgerRepository) ListLog(ctx context.Context, petitionID uuid.UUID) ([]*LogEntry, error) {
	var out []*LogEntry
	err := r.db.View(ctx, func(txn *badger.Txn) error {
		return badgerdb.ScanJSON(txn, badgerdb.Prefix("modlog", petitionID.String()), false, func(e *LogEntry) bool {
			out = append(out, e)
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list moderation log: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PerformedAt.After(out[j].PerformedAt)
	})
	return out, nil
}

// CountByAction aggregates the whole log.
func (r *BadgerRepository) CountByAction(ctx context.Context) (map[ActionType]int64, error) {
	out := make(map[ActionType]int64)
	err := r.db.View(ctx, func(txn *badger.Txn) error {
		return badgerdb.ScanJSON(txn, badgerdb.Prefix("modlog"), false, func(e *LogEntry) bool {
			out[e.ActionType]++
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("count moderation log: %w", err)
	}
	return out, nil
}
