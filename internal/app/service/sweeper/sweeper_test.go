package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/tollgate/internal/app/service/invitelink"
	"github.com/fatflowers/tollgate/internal/app/service/membership"
	"github.com/fatflowers/tollgate/internal/models"
	"github.com/fatflowers/tollgate/internal/platform/cache"
	"github.com/fatflowers/tollgate/internal/platform/telegram/telegramtest"
	"github.com/fatflowers/tollgate/internal/store"
	"github.com/fatflowers/tollgate/pkg/config"
	"github.com/fatflowers/tollgate/pkg/types"
)

type fixture struct {
	s      *Sweeper
	store  *store.MemoryStore
	api    *telegramtest.FakeAPI
	locker *cache.LocalLocker
}

func newFixture(t *testing.T, st store.Store, mem *store.MemoryStore) *fixture {
	t.Helper()
	mem.PutCommunity(&models.Community{ID: "c1", Name: "paid", ExternalChatID: lo.ToPtr(int64(-1001))})
	cfg := &config.Config{
		Membership: config.MembershipConfig{AutoEvict: true},
		Sweeper:    config.SweeperConfig{BatchLimit: 10, LockTTL: time.Minute},
	}
	api := telegramtest.NewFakeAPI()
	gw := telegramtest.NewGateway(api)
	log := zap.NewNop().Sugar()
	links := invitelink.New(st, gw, cache.NewMemoryLinkCache(), cfg, log)
	members := membership.New(st, gw, links, cfg, log, nil)
	locker := cache.NewLocalLocker()
	return &fixture{s: New(st, members, locker, cfg, log, nil), store: mem, api: api, locker: locker}
}

func (f *fixture) put(t *testing.T, userID int64, end time.Time, present bool) {
	t.Helper()
	require.NoError(t, f.store.UpsertMember(context.Background(), &models.Member{
		ExternalUserID:     userID,
		CommunityID:        "c1",
		IsActive:           present,
		SubscriptionStatus: types.SubscriptionStatusActive,
		SubscriptionStart:  lo.ToPtr(end.AddDate(0, -1, 0)),
		SubscriptionEnd:    lo.ToPtr(end),
	}))
}

func TestRunOnce_ExpiresLapsedMembers(t *testing.T) {
	mem := store.NewMemoryStore()
	f := newFixture(t, mem, mem)
	now := time.Now()
	f.put(t, 1, now.Add(-time.Hour), true)
	f.put(t, 2, now.Add(-2*time.Hour), false)
	f.put(t, 3, now.Add(time.Hour), true)

	rep, err := f.s.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, Report{Scanned: 2, Expired: 2, Evicted: 1}, rep)

	m1, err := mem.FindMember(context.Background(), 1, "c1")
	require.NoError(t, err)
	require.Equal(t, types.SubscriptionStatusExpired, m1.SubscriptionStatus)
	require.False(t, m1.IsActive)

	m3, err := mem.FindMember(context.Background(), 3, "c1")
	require.NoError(t, err)
	require.Equal(t, types.SubscriptionStatusActive, m3.SubscriptionStatus)

	require.Len(t, f.api.CallsOf("banChatMember"), 1)
	require.Equal(t, int64(1), f.api.CallsOf("banChatMember")[0].UserID)
}

func TestRunOnce_PlatformFailureStillExpires(t *testing.T) {
	mem := store.NewMemoryStore()
	f := newFixture(t, mem, mem)
	f.put(t, 1, time.Now().Add(-time.Hour), true)
	f.api.FailNext("banChatMember", telegramtest.Forbidden("Forbidden: not enough rights"))

	rep, err := f.s.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, rep.Expired)

	m, err := mem.FindMember(context.Background(), 1, "c1")
	require.NoError(t, err)
	require.Equal(t, types.SubscriptionStatusExpired, m.SubscriptionStatus)
}

func TestRunOnce_SkipsWhenLocked(t *testing.T) {
	mem := store.NewMemoryStore()
	f := newFixture(t, mem, mem)
	f.put(t, 1, time.Now().Add(-time.Hour), true)

	unlock, err := f.locker.TryLock(context.Background(), lockName, time.Minute)
	require.NoError(t, err)
	rep, err := f.s.RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, rep.Locked)
	require.Empty(t, f.api.Calls())

	unlock()
	rep, err = f.s.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, rep.Expired)
}

func TestRunOnce_ReleasesLock(t *testing.T) {
	mem := store.NewMemoryStore()
	f := newFixture(t, mem, mem)
	_, err := f.s.RunOnce(context.Background())
	require.NoError(t, err)

	unlock, err := f.locker.TryLock(context.Background(), lockName, time.Minute)
	require.NoError(t, err)
	unlock()
}

type flakyStore struct {
	*store.MemoryStore
	failUser int64
	listErr  error
}

func (s flakyStore) ListExpiredMembers(ctx context.Context, now time.Time, limit int) ([]*models.Member, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.MemoryStore.ListExpiredMembers(ctx, now, limit)
}

func (s flakyStore) UpsertMember(ctx context.Context, m *models.Member) error {
	if m.ExternalUserID == s.failUser && m.SubscriptionStatus == types.SubscriptionStatusExpired {
		return errors.New("write failed")
	}
	return s.MemoryStore.UpsertMember(ctx, m)
}

func TestRunOnce_MemberFailureIsCounted(t *testing.T) {
	mem := store.NewMemoryStore()
	f := newFixture(t, flakyStore{MemoryStore: mem, failUser: 1}, mem)
	now := time.Now()
	f.put(t, 1, now.Add(-2*time.Hour), false)
	f.put(t, 2, now.Add(-time.Hour), false)

	rep, err := f.s.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, rep.Scanned)
	require.Equal(t, 1, rep.Failed)
	require.Equal(t, 1, rep.Expired)
}

func TestRunOnce_ListFailureAborts(t *testing.T) {
	mem := store.NewMemoryStore()
	f := newFixture(t, flakyStore{MemoryStore: mem, listErr: errors.New("db down")}, mem)
	_, err := f.s.RunOnce(context.Background())
	require.Error(t, err)
}

func TestNewCron_RejectsBadSpec(t *testing.T) {
	mem := store.NewMemoryStore()
	f := newFixture(t, mem, mem)
	_, err := NewCron(f.s, &config.Config{Sweeper: config.SweeperConfig{Spec: "not a spec"}}, zap.NewNop().Sugar())
	require.Error(t, err)

	c, err := NewCron(f.s, &config.Config{Sweeper: config.SweeperConfig{Spec: "@every 1m"}}, zap.NewNop().Sugar())
	require.NoError(t, err)
	require.Len(t, c.Entries(), 1)
}
