package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civicpulse.app/engagement/internal/common"
	"civicpulse.app/engagement/internal/db/badgerdb"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := badgerdb.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewService(NewBadgerRepository(db))
}

func TestNotifyAndListNewestFirst(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	member := uuid.New()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	svc.Notify(ctx, Notice{MemberID: member, Kind: KindBadgeEarned, Title: "first", CreatedAt: base})
	svc.Notify(ctx, Notice{MemberID: member, Kind: KindLevelUp, Title: "second", CreatedAt: base.Add(time.Minute)})
	svc.Notify(ctx, Notice{MemberID: uuid.New(), Kind: KindLevelUp, Title: "someone else"})

	got, err := svc.List(ctx, member, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "second", got[0].Title)
	assert.Equal(t, "first", got[1].Title)
	assert.NotEqual(t, uuid.Nil, got[0].ID)

	limited, err := svc.List(ctx, member, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestListRejectsBadLimit(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.List(context.Background(), uuid.New(), 0)
	assert.ErrorIs(t, err, common.ErrInvalidLimit)
}

type failingRepo struct{}

func (failingRepo) Insert(context.Context, *Notice) error { return errors.New("store down") }
func (failingRepo) ListByMember(context.Context, uuid.UUID, int) ([]*Notice, error) {
	return nil, nil
}

func TestNotifySwallowsStoreErrors(t *testing.T) {
	svc := NewService(failingRepo{})
	assert.NotPanics(t, func() {
		svc.Notify(context.Background(), Notice{MemberID: uuid.New(), Kind: KindLevelUp})
	})
}
