package engagement

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civicpulse.app/engagement/internal/common"
	"civicpulse.app/engagement/internal/db/badgerdb"
	"civicpulse.app/engagement/internal/features/activity"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// recordingNotifier keeps every notice in memory.
type recordingNotifier struct {
	mu      sync.Mutex
	notices []activity.Notice
}

func (n *recordingNotifier) Notify(_ context.Context, notice activity.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *recordingNotifier) ofKind(kind activity.Kind) []activity.Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []activity.Notice
	for _, notice := range n.notices {
		if notice.Kind == kind {
			out = append(out, notice)
		}
	}
	return out
}

// tickingClock advances one millisecond per call.
type tickingClock struct {
	mu  sync.Mutex
	cur time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Millisecond)
	return c.cur
}

type fixture struct {
	db       *badgerdb.DB
	svc      *Service
	repo     *BadgerRepository
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := badgerdb.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewBadgerRepository(db)
	notifier := &recordingNotifier{}
	svc := NewService(repo, MustDefaultEvaluator(), notifier, 100)
	clock := &tickingClock{cur: testEpoch}
	svc.now = clock.Now
	return &fixture{db: db, svc: svc, repo: repo, notifier: notifier}
}

// veteran creates a member who joined long before the early-adopter window.
func (f *fixture) veteran(t *testing.T, name string) uuid.UUID {
	t.Helper()
	return f.memberJoined(t, name, testEpoch.AddDate(-1, 0, 0))
}

func (f *fixture) memberJoined(t *testing.T, name string, joined time.Time) uuid.UUID {
	t.Helper()
	m := &Member{ID: uuid.New(), DisplayName: name, CreatedAt: joined}
	require.NoError(t, f.repo.EnsureMember(context.Background(), m))
	return m.ID
}

func (f *fixture) member(t *testing.T, id uuid.UUID) *Member {
	t.Helper()
	m, err := f.repo.GetMember(context.Background(), id)
	require.NoError(t, err)
	return m
}

func ref(s string) *string { return &s }

// contributed marks entity as the member's without awarding points, the way
// petitions made before the engine existed show up.
func (f *fixture) contributed(t *testing.T, kind ContributionKind, id uuid.UUID, entity string) {
	t.Helper()
	require.NoError(t, f.db.Update(context.Background(), func(txn *badger.Txn) error {
		return txn.Set(contributionKey(kind, id, entity), nil)
	}))
}

func TestAwardPointsUnknownAction(t *testing.T) {
	f := newFixture(t)
	id := f.veteran(t, "ana")

	_, err := f.svc.AwardPoints(context.Background(), id, Action("petition_shared"), nil)
	assert.ErrorIs(t, err, common.ErrUnknownAction)
	assert.Equal(t, int64(0), f.member(t, id).TotalPoints)
}

func TestAwardPointsMemberNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.AwardPoints(context.Background(), uuid.New(), ActionCommentPosted, nil)
	assert.ErrorIs(t, err, common.ErrMemberNotFound)
}

func TestAwardPointsAccumulatesAndLevelsUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.veteran(t, "ana")

	var last *AwardResult
	for i := 0; i < 3; i++ {
		res, err := f.svc.AwardPoints(ctx, id, ActionCommentPosted, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(3), res.Points)
		assert.False(t, res.LeveledUp)
		last = res
	}
	assert.Equal(t, int64(9), last.NewTotal)
	assert.Equal(t, 1, last.Level)

	res, err := f.svc.AwardPoints(ctx, id, ActionCommentPosted, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(12), res.NewTotal)
	assert.Equal(t, 2, res.Level)
	assert.True(t, res.LeveledUp)

	m := f.member(t, id)
	assert.Equal(t, int64(12), m.TotalPoints)
	assert.Equal(t, 2, m.Level)

	ups := f.notifier.ofKind(activity.KindLevelUp)
	require.Len(t, ups, 1)
	assert.Equal(t, id, ups[0].MemberID)
	assert.Contains(t, ups[0].Title, "Level 2")
}

func TestAwardPointsDeduplicatesReferencedActions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.veteran(t, "ana")

	first, err := f.svc.AwardPoints(ctx, id, ActionPetitionVoted, ref("petition-1"))
	require.NoError(t, err)
	assert.False(t, first.Duplicate)
	assert.Equal(t, int64(2), first.NewTotal)

	again, err := f.svc.AwardPoints(ctx, id, ActionPetitionVoted, ref("petition-1"))
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, int64(0), again.Points)
	assert.Equal(t, int64(2), again.NewTotal)

	other, err := f.svc.AwardPoints(ctx, id, ActionPetitionVoted, ref("petition-2"))
	require.NoError(t, err)
	assert.Equal(t, int64(4), other.NewTotal)

	// comments are not deduplicated by reference
	for i := 0; i < 2; i++ {
		_, err := f.svc.AwardPoints(ctx, id, ActionCommentPosted, ref("petition-1"))
		require.NoError(t, err)
	}
	assert.Equal(t, int64(10), f.member(t, id).TotalPoints)

	history, err := f.svc.GetPointHistory(ctx, id, 50)
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestFirstPetitionCascadesIntoBadgeBonus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.veteran(t, "ana")

	res, err := f.svc.AwardPoints(ctx, id, ActionPetitionCreated, ref("petition-1"))
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.Points)
	assert.Equal(t, []string{"first-petition"}, res.BadgesEarned)
	assert.Equal(t, int64(35), res.NewTotal)
	assert.Equal(t, 2, res.Level)

	history, err := f.svc.GetPointHistory(ctx, id, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, ActionBadgeEarned, history[0].Action)
	assert.Equal(t, "first-petition", *history[0].ReferenceID)
	assert.Equal(t, int64(25), history[0].Points)
	assert.Equal(t, ActionPetitionCreated, history[1].Action)

	badgeNotices := f.notifier.ofKind(activity.KindBadgeEarned)
	require.Len(t, badgeNotices, 1)
	assert.Equal(t, "first-petition", *badgeNotices[0].ReferenceID)

	// nothing new to grant
	earned, err := f.svc.CheckAndAwardBadges(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, earned)
	assert.Equal(t, int64(35), f.member(t, id).TotalPoints)
}

func TestEarlyAdopterOnFirstAward(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.memberJoined(t, "newcomer", testEpoch.AddDate(0, 0, -3))

	res, err := f.svc.AwardPoints(ctx, id, ActionCommentPosted, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"early-adopter"}, res.BadgesEarned)
	assert.Equal(t, int64(28), res.NewTotal)
}

func TestConcurrentAwardsLoseNoUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.veteran(t, "ana")

	const n = 30
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.AwardPoints(ctx, id, ActionCommentPosted, nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// 30 comments × 3, plus one commentator bonus
	m := f.member(t, id)
	assert.Equal(t, int64(n*3+25), m.TotalPoints)
	assert.Equal(t, CalculateLevel(m.TotalPoints), m.Level)

	badges, err := f.repo.ListBadges(ctx, id)
	require.NoError(t, err)
	require.Len(t, badges, 1)
	assert.Equal(t, "commentator", badges[0].BadgeID)
}

func TestCommentsOnOnePetitionCountSeparately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.veteran(t, "ana")

	for i := 0; i < 20; i++ {
		_, err := f.svc.AwardPoints(ctx, id, ActionCommentPosted, ref("petition-1"))
		require.NoError(t, err)
	}

	stats, err := f.svc.GetMemberStats(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(20), stats.TotalComments)
	assert.Equal(t, int64(20*3+25), stats.TotalPoints)
	require.Len(t, stats.Badges, 1)
	assert.Equal(t, "commentator", stats.Badges[0].ID)
}

func TestAwardLogKeepsSeverity(t *testing.T) {
	f := newFixture(t)
	id := f.veteran(t, "ana")
	hook := logtest.NewGlobal()
	defer hook.Reset()

	_, err := f.svc.AwardPoints(context.Background(), id, ActionPetitionCreated, ref("petition-1"))
	require.NoError(t, err)

	var awarded *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == "Points awarded" {
			awarded = e
		}
	}
	require.NotNil(t, awarded)
	assert.Equal(t, logrus.InfoLevel, awarded.Level)
	assert.Equal(t, 1, awarded.Data["member_level"])
	assert.NotContains(t, awarded.Data, "level")
}

func TestRepeatedVoteCountsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.veteran(t, "ana")

	for i := 0; i < 3; i++ {
		_, err := f.svc.AwardPoints(ctx, id, ActionPetitionVoted, ref("petition-1"))
		require.NoError(t, err)
	}

	stats, err := f.svc.GetMemberStats(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalVotes)
	assert.Equal(t, int64(2), stats.TotalPoints)
}

func TestConcurrentBadgeChecksGrantOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.veteran(t, "ana")
	f.contributed(t, ContributionPetitions, id, "petition-imported")

	const n = 10
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total []string
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			earned, err := f.svc.CheckAndAwardBadges(ctx, id)
			assert.NoError(t, err)
			mu.Lock()
			total = append(total, earned...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, []string{"first-petition"}, total)
	assert.Equal(t, int64(25), f.member(t, id).TotalPoints)
	assert.Len(t, f.notifier.ofKind(activity.KindBadgeEarned), 1)
}

func TestGetMemberStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.veteran(t, "ana")

	_, err := f.svc.AwardPoints(ctx, id, ActionPetitionCreated, ref("p1"))
	require.NoError(t, err)
	_, err = f.svc.AwardPoints(ctx, id, ActionPetitionVoted, ref("p7"))
	require.NoError(t, err)
	_, err = f.svc.AwardPoints(ctx, id, ActionPetitionVoted, ref("p8"))
	require.NoError(t, err)
	_, err = f.svc.AwardPoints(ctx, id, ActionCommentPosted, ref("p7"))
	require.NoError(t, err)

	stats, err := f.svc.GetMemberStats(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(10+25+2+2+3), stats.TotalPoints)
	assert.Equal(t, 3, stats.Level)
	assert.Equal(t, int64(1), stats.TotalPetitions)
	assert.Equal(t, int64(2), stats.TotalVotes)
	assert.Equal(t, int64(1), stats.TotalComments)
	assert.GreaterOrEqual(t, stats.DaysSinceJoined, int64(365))
	require.Len(t, stats.Badges, 1)
	assert.Equal(t, "First Petition", stats.Badges[0].Name)
	assert.Equal(t, Progress{Current: 2, Needed: 50, Percent: 4}, stats.Progress)
}

func TestGetMemberStatsNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetMemberStats(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrMemberNotFound)
}

func TestGetLeaderboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	older := f.memberJoined(t, "older", testEpoch.AddDate(-2, 0, 0))
	newer := f.memberJoined(t, "newer", testEpoch.AddDate(-1, 0, 0))
	top := f.veteran(t, "top")
	idle := f.veteran(t, "idle")

	for _, id := range []uuid.UUID{older, newer} {
		_, err := f.svc.AwardPoints(ctx, id, ActionCommentPosted, nil)
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		_, err := f.svc.AwardPoints(ctx, top, ActionCommentPosted, nil)
		require.NoError(t, err)
	}

	board, err := f.svc.GetLeaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 4)
	assert.Equal(t, top, board[0].MemberID)
	assert.Equal(t, older, board[1].MemberID)
	assert.Equal(t, newer, board[2].MemberID)
	assert.Equal(t, idle, board[3].MemberID)
	for i, e := range board {
		assert.Equal(t, i+1, e.Rank)
	}
	assert.Equal(t, "top", board[0].Name)
	assert.Equal(t, int64(9), board[0].TotalPoints)

	head, err := f.svc.GetLeaderboard(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, head, 2)

	_, err = f.svc.GetLeaderboard(ctx, 0)
	assert.ErrorIs(t, err, common.ErrInvalidLimit)
	_, err = f.svc.GetLeaderboard(ctx, 101)
	assert.ErrorIs(t, err, common.ErrInvalidLimit)
}

func TestGetPointHistoryNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.veteran(t, "ana")

	_, err := f.svc.AwardPoints(ctx, id, ActionCommentPosted, nil)
	require.NoError(t, err)
	_, err = f.svc.AwardPoints(ctx, id, ActionPetitionVoted, ref("p1"))
	require.NoError(t, err)

	history, err := f.svc.GetPointHistory(ctx, id, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, ActionPetitionVoted, history[0].Action)

	_, err = f.svc.GetPointHistory(ctx, uuid.New(), 10)
	assert.ErrorIs(t, err, common.ErrMemberNotFound)
}

func TestEnsureMemberKeepsAggregates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.veteran(t, "ana")
	_, err := f.svc.AwardPoints(ctx, id, ActionCommentPosted, nil)
	require.NoError(t, err)

	m, err := f.svc.EnsureMember(ctx, id, "Ana M.", ref("https://cdn.example/ana.png"))
	require.NoError(t, err)
	assert.Equal(t, "Ana M.", m.DisplayName)
	assert.Equal(t, int64(3), m.TotalPoints)
	assert.True(t, testEpoch.AddDate(-1, 0, 0).Equal(m.CreatedAt))
}
