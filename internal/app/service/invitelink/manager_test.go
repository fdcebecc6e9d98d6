package invitelink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/tollgate/internal/models"
	"github.com/fatflowers/tollgate/internal/platform/cache"
	"github.com/fatflowers/tollgate/internal/platform/telegram/telegramtest"
	"github.com/fatflowers/tollgate/internal/store"
	"github.com/fatflowers/tollgate/pkg/config"
	"github.com/fatflowers/tollgate/pkg/types"
)

type fixture struct {
	m     *Manager
	store *store.MemoryStore
	api   *telegramtest.FakeAPI
	cache *cache.MemoryLinkCache
	now   time.Time
}

const chatID int64 = -1001

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	st.PutCommunity(&models.Community{ID: "c1", Name: "paid", ExternalChatID: lo.ToPtr(chatID)})
	st.PutCommunity(&models.Community{ID: "c2", Name: "unverified"})

	api := telegramtest.NewFakeAPI()
	lc := cache.NewMemoryLinkCache()
	cfg := &config.Config{Invite: config.InviteConfig{Expiry: 24 * time.Hour, PersonalMemberLimit: 1}}
	m := New(st, telegramtest.NewGateway(api), lc, cfg, zap.NewNop().Sugar())
	now := time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	return &fixture{m: m, store: st, api: api, cache: lc, now: now}
}

func TestLinkName(t *testing.T) {
	require.Equal(t, "u42-20260115", LinkName(42, time.Date(2026, 1, 15, 23, 0, 0, 0, time.UTC)))
}

func TestGetOrCreate_CreatesAndCaches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	link, err := f.m.GetOrCreate(ctx, "c1", 42)
	require.NoError(t, err)
	require.Equal(t, "https://t.me/+fake1", link)

	calls := f.api.CallsOf("createChatInviteLink")
	require.Len(t, calls, 1)
	require.Equal(t, chatID, calls[0].ChatID)
	require.Empty(t, calls[0].LinkParams.Name)
	require.Equal(t, f.now.Add(24*time.Hour), calls[0].LinkParams.ExpireAt)
	require.Zero(t, calls[0].LinkParams.MemberLimit)

	c, err := f.store.FindCommunity(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, link, *c.InviteLink)

	rows := f.store.InviteLinks()
	require.Len(t, rows, 1)
	require.Nil(t, rows[0].MemberUserID)
	require.Empty(t, rows[0].Name)

	again, err := f.m.GetOrCreate(ctx, "c1", 43)
	require.NoError(t, err)
	require.Equal(t, link, again)
	require.Len(t, f.api.CallsOf("createChatInviteLink"), 1)
}

func TestGetOrCreate_UsesStoredLinkWhenCacheIsCold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SetCommunityInviteLink(ctx, "c1", "https://t.me/+stored", f.now.Add(time.Hour)))

	link, err := f.m.GetOrCreate(ctx, "c1", 0)
	require.NoError(t, err)
	require.Equal(t, "https://t.me/+stored", link)
	require.Empty(t, f.api.Calls())

	cached, ok, err := f.cache.Get(ctx, "c1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, link, cached)
}

func TestGetOrCreate_ExpiredStoredLinkIsReplaced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SetCommunityInviteLink(ctx, "c1", "https://t.me/+old", f.now.Add(-time.Minute)))

	link, err := f.m.GetOrCreate(ctx, "c1", 0)
	require.NoError(t, err)
	require.NotEqual(t, "https://t.me/+old", link)
	require.Empty(t, f.api.CallsOf("createChatInviteLink")[0].LinkParams.Name)
}

func TestGetOrCreate_Unavailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.m.GetOrCreate(ctx, "c2", 42)
	require.ErrorIs(t, err, ErrLinkUnavailable)

	_, err = f.m.GetOrCreate(ctx, "missing", 42)
	require.ErrorIs(t, err, ErrLinkUnavailable)

	f.api.FailNext("createChatInviteLink", telegramtest.Forbidden("Forbidden: not enough rights"))
	_, err = f.m.GetOrCreate(ctx, "c1", 42)
	require.ErrorIs(t, err, ErrLinkUnavailable)
	require.Empty(t, f.store.InviteLinks())
}

func TestIssuePersonal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.PutPayment(&models.Payment{ID: "p1", CommunityID: "c1", PayerExternalID: 42, Status: types.PaymentStatusSuccessful})

	link, err := f.m.IssuePersonal(ctx, "c1", 42, "p1")
	require.NoError(t, err)

	call := f.api.CallsOf("createChatInviteLink")[0]
	require.Equal(t, 1, call.LinkParams.MemberLimit)
	require.Equal(t, "u42-20260115", call.LinkParams.Name)

	p, err := f.store.FindPayment(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, link, *p.InviteLink)

	rows := f.store.InviteLinks()
	require.Len(t, rows, 1)
	require.Equal(t, int64(42), *rows[0].MemberUserID)
	require.Equal(t, "p1", *rows[0].PaymentID)
}

func TestInvalidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.PutPayment(&models.Payment{ID: "p1", CommunityID: "c1", PayerExternalID: 42, Status: types.PaymentStatusSuccessful})
	link, err := f.m.IssuePersonal(ctx, "c1", 42, "p1")
	require.NoError(t, err)

	require.NoError(t, f.m.Invalidate(ctx, &models.Member{ExternalUserID: 42, CommunityID: "c1"}))

	p, err := f.store.FindPayment(ctx, "p1")
	require.NoError(t, err)
	require.Nil(t, p.InviteLink)
	require.NotNil(t, f.store.InviteLinks()[0].RevokedAt)

	revokes := f.api.CallsOf("revokeChatInviteLink")
	require.Len(t, revokes, 1)
	require.Equal(t, link, revokes[0].Link)

	// already revoked rows are not revoked twice
	require.NoError(t, f.m.Invalidate(ctx, &models.Member{ExternalUserID: 42, CommunityID: "c1"}))
	require.Len(t, f.api.CallsOf("revokeChatInviteLink"), 1)
}

func TestInvalidate_PlatformFailureIsBestEffort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.m.IssuePersonal(ctx, "c1", 42, "")
	require.NoError(t, err)
	f.api.ErrFunc = func(c telegramtest.Call) error {
		if c.Method == "revokeChatInviteLink" {
			return telegramtest.BadRequest("Bad Request: INVITE_HASH_EXPIRED")
		}
		return nil
	}

	require.NoError(t, f.m.Invalidate(ctx, &models.Member{ExternalUserID: 42, CommunityID: "c1"}))
	require.NotNil(t, f.store.InviteLinks()[0].RevokedAt)
}

func TestUnavailable_WrapsCause(t *testing.T) {
	cause := errors.New("boom")
	err := unavailable("create link", cause)
	require.ErrorIs(t, err, ErrLinkUnavailable)
	require.ErrorIs(t, err, cause)
}
