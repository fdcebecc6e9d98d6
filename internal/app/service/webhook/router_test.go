package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/tollgate/internal/app/service/admission"
	"github.com/fatflowers/tollgate/internal/app/service/invitelink"
	"github.com/fatflowers/tollgate/internal/app/service/membership"
	"github.com/fatflowers/tollgate/internal/app/service/payment"
	"github.com/fatflowers/tollgate/internal/models"
	"github.com/fatflowers/tollgate/internal/platform/cache"
	"github.com/fatflowers/tollgate/internal/platform/telegram/telegramtest"
	"github.com/fatflowers/tollgate/internal/store"
	"github.com/fatflowers/tollgate/pkg/config"
	"github.com/fatflowers/tollgate/pkg/metrics"
	"github.com/fatflowers/tollgate/pkg/types"
)

const (
	chatID int64 = -1001
	userID int64 = 42
)

type fixture struct {
	t     *testing.T
	r     *Router
	store *store.MemoryStore
	api   *telegramtest.FakeAPI
	reg   *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	st.PutCommunity(&models.Community{ID: "c1", Name: "Paid Club", ExternalChatID: lo.ToPtr(chatID)})
	st.PutCommunity(&models.Community{ID: "c2", Name: "Fresh Group", VerificationCode: lo.ToPtr("abc123")})
	st.PutPlan(&models.SubscriptionPlan{
		ID:          "plan-m",
		CommunityID: "c1",
		Interval:    types.PlanIntervalMonthly,
		Price:       decimal.NewFromInt(50),
		Currency:    "XTR",
		IsActive:    true,
	})
	return newFixtureWithStore(t, st)
}

func newFixtureWithStore(t *testing.T, st *store.MemoryStore) *fixture {
	return buildFixture(t, st, st)
}

func buildFixture(t *testing.T, mem *store.MemoryStore, st store.Store) *fixture {
	t.Helper()
	cfg := &config.Config{
		Membership: config.MembershipConfig{AutoEvict: true},
		Telegram:   config.TelegramConfig{BotUsername: "tollgate_bot"},
	}
	api := telegramtest.NewFakeAPI()
	gw := telegramtest.NewGateway(api)
	log := zap.NewNop().Sugar()
	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg)

	links := invitelink.New(st, gw, cache.NewMemoryLinkCache(), cfg, log)
	members := membership.New(st, gw, links, cfg, log, rec)
	adm := admission.New(st, members, gw, log, rec)
	payments := payment.New(st, members, links, gw, log, rec)
	r := New(st, members, adm, links, payments, gw, cfg, log, rec)
	return &fixture{t: t, r: r, store: mem, api: api, reg: reg}
}

func (f *fixture) handle(body string) Response {
	f.t.Helper()
	return f.r.Handle(context.Background(), []byte(body))
}

func (f *fixture) lastAudit() *models.WebhookEventLog {
	f.t.Helper()
	logs := f.store.EventLogs()
	require.NotEmpty(f.t, logs)
	return logs[len(logs)-1]
}

func (f *fixture) member(userID int64, communityID string) *models.Member {
	f.t.Helper()
	m, err := f.store.FindMember(context.Background(), userID, communityID)
	require.NoError(f.t, err)
	return m
}

func chatMemberUpdate(status string, isMember bool) string {
	return fmt.Sprintf(`{"update_id":10,"chat_member":{"chat":{"id":%d,"type":"supergroup"},"from":{"id":%d},"date":1,
		"old_chat_member":{"status":"left","user":{"id":%d}},
		"new_chat_member":{"status":%q,"is_member":%t,"user":{"id":%d,"first_name":"Ann","username":"ann"}}}}`,
		chatID, userID, userID, status, isMember, userID)
}

func privateMessage(text string) string {
	return fmt.Sprintf(`{"update_id":20,"message":{"message_id":1,"from":{"id":%d,"username":"ann"},"chat":{"id":%d,"type":"private"},"date":1,"text":%q}}`,
		userID, userID, text)
}

func TestHandle_MalformedUpdates(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: `{"update_id":`},
		{name: "message without chat", body: `{"update_id":1,"message":{"message_id":1,"text":"hi"}}`},
		{name: "join request without user", body: fmt.Sprintf(`{"update_id":1,"chat_join_request":{"chat":{"id":%d}}}`, chatID)},
		{name: "callback without id", body: `{"update_id":1,"callback_query":{"from":{"id":1},"data":"invite:c1"}}`},
		{name: "payment without payer", body: `{"update_id":1,"message":{"chat":{"id":5},"successful_payment":{"currency":"XTR"}}}`},
		{name: "unknown member status", body: strings.Replace(chatMemberUpdate("member", false), `"status":"member"`, `"status":"ghost"`, 1)},
		{name: "member update without user", body: fmt.Sprintf(`{"update_id":1,"chat_member":{"chat":{"id":%d},"new_chat_member":{"status":"member"}}}`, chatID)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			resp := f.handle(tt.body)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			require.False(t, resp.Body.Success)
			require.Empty(t, f.store.EventLogs())
			require.Empty(t, f.api.Calls())
		})
	}
}

func TestClassify_MemberAndCallbackShapes(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantKind Kind
		wantChat int64
		wantUser int64
	}{
		{
			name:     "administrator carries its user by value",
			body:     fmt.Sprintf(`{"update_id":1,"my_chat_member":{"chat":{"id":%d},"from":{"id":1},"date":1,"old_chat_member":{"status":"member","user":{"id":9}},"new_chat_member":{"status":"administrator","user":{"id":9,"is_bot":true}}}}`, chatID),
			wantKind: KindMyChatMember,
			wantChat: chatID,
			wantUser: 9,
		},
		{
			name:     "callback on a message",
			body:     fmt.Sprintf(`{"update_id":2,"callback_query":{"id":"cb","from":{"id":%d},"message":{"message_id":3,"date":5,"chat":{"id":-3003}},"data":"x"}}`, userID),
			wantKind: KindCallbackQuery,
			wantChat: -3003,
			wantUser: userID,
		},
		{
			name:     "callback on an inaccessible message",
			body:     fmt.Sprintf(`{"update_id":3,"callback_query":{"id":"cb","from":{"id":%d},"message":{"message_id":3,"date":0,"chat":{"id":-4004}},"data":"x"}}`, userID),
			wantKind: KindCallbackQuery,
			wantChat: -4004,
			wantUser: userID,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := Decode([]byte(tt.body))
			require.NoError(t, err)
			ev, err := Classify(u)
			require.NoError(t, err)
			require.Equal(t, tt.wantKind, ev.Kind())
			require.Equal(t, tt.wantChat, ev.ChatID())
			require.Equal(t, tt.wantUser, ev.UserID())
		})
	}
}

func TestHandle_UnclassifiedIsIgnored(t *testing.T) {
	f := newFixture(t)
	resp := f.handle(`{"update_id":7,"poll":{"id":"p1"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, resp.Body.Success)

	audit := f.lastAudit()
	require.Equal(t, string(KindUnclassified), audit.Kind)
	require.Equal(t, models.WebhookEventLogStatusIgnored, audit.Status)
	require.False(t, audit.Handled)
	require.EqualValues(t, 7, audit.UpdateID)

	n, err := testutil.GatherAndCount(f.reg, "tollgate_webhook_events_total")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestHandle_ChatMemberLifecycle(t *testing.T) {
	f := newFixture(t)

	resp := f.handle(chatMemberUpdate("member", false))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, resp.Body.Success)
	audit := f.lastAudit()
	require.Equal(t, models.WebhookEventLogStatusHandled, audit.Status)
	require.True(t, audit.Handled)
	require.Equal(t, chatID, *audit.ChatID)
	require.Equal(t, userID, *audit.UserID)
	require.NotNil(t, audit.Result)
	require.Contains(t, string(*audit.Result), `"action":"join"`)

	m := f.member(userID, "c1")
	require.True(t, m.IsActive)
	require.Equal(t, types.SubscriptionStatusInactive, m.SubscriptionStatus)
	require.Equal(t, "ann", m.Username)

	f.handle(chatMemberUpdate("left", false))
	m = f.member(userID, "c1")
	require.False(t, m.IsActive)
	require.NotNil(t, m.LeftAt)

	f.handle(chatMemberUpdate("kicked", false))
	m = f.member(userID, "c1")
	require.Equal(t, types.SubscriptionStatusRemoved, m.SubscriptionStatus)
}

func TestHandle_ChatMemberRestrictedStillMember(t *testing.T) {
	f := newFixture(t)
	f.handle(chatMemberUpdate("restricted", true))
	require.True(t, f.member(userID, "c1").IsActive)

	f.handle(chatMemberUpdate("restricted", false))
	require.False(t, f.member(userID, "c1").IsActive)
}

func TestHandle_ChatMemberUnknownChat(t *testing.T) {
	f := newFixture(t)
	body := strings.Replace(chatMemberUpdate("member", false), fmt.Sprint(chatID), "-999", 1)
	resp := f.handle(body)
	require.True(t, resp.Body.Success)

	audit := f.lastAudit()
	require.Equal(t, models.WebhookEventLogStatusIgnored, audit.Status)
	require.Contains(t, string(*audit.Result), "community not registered")
	_, err := f.store.FindMember(context.Background(), userID, "c1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestHandle_MyChatMemberDemotion(t *testing.T) {
	f := newFixture(t)
	body := fmt.Sprintf(`{"update_id":3,"my_chat_member":{"chat":{"id":%d},"from":{"id":1},
		"old_chat_member":{"status":"administrator","user":{"id":999,"is_bot":true}},
		"new_chat_member":{"status":"member","user":{"id":999,"is_bot":true}}}}`, chatID)
	resp := f.handle(body)
	require.True(t, resp.Body.Success)

	audit := f.lastAudit()
	require.True(t, audit.Handled)
	require.Contains(t, string(*audit.Result), "bot_demoted")
	require.Empty(t, f.api.Calls())
}

func TestHandle_JoinRequest(t *testing.T) {
	body := fmt.Sprintf(`{"update_id":4,"chat_join_request":{"chat":{"id":%d,"type":"supergroup"},"from":{"id":%d,"username":"ann"},"user_chat_id":%d,"date":1}}`,
		chatID, userID, userID)

	t.Run("declined without payment", func(t *testing.T) {
		f := newFixture(t)
		resp := f.handle(body)
		require.True(t, resp.Body.Success)
		require.Equal(t, []string{"declineChatJoinRequest"}, f.api.Methods())
		require.Contains(t, string(*f.lastAudit().Result), `"approved":false`)
	})

	t.Run("approved with live subscription", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.UpsertMember(context.Background(), &models.Member{
			ExternalUserID:     userID,
			CommunityID:        "c1",
			SubscriptionStatus: types.SubscriptionStatusActive,
			SubscriptionEnd:    lo.ToPtr(time.Now().Add(24 * time.Hour)),
		}))
		f.handle(body)
		require.Equal(t, []string{"approveChatJoinRequest"}, f.api.Methods())
		require.Contains(t, string(*f.lastAudit().Result), `"approved":true`)
	})
}

func TestHandle_CallbackInvite(t *testing.T) {
	body := fmt.Sprintf(`{"update_id":5,"callback_query":{"id":"cb1","from":{"id":%d},"data":"invite:c1"}}`, userID)

	t.Run("link sent by dm", func(t *testing.T) {
		f := newFixture(t)
		resp := f.handle(body)
		require.True(t, resp.Body.Success)
		require.Equal(t, []string{"createChatInviteLink", "sendMessage", "answerCallbackQuery"}, f.api.Methods())

		dm := f.api.CallsOf("sendMessage")[0]
		require.Equal(t, userID, dm.ChatID)
		require.Contains(t, dm.Text, "https://t.me/+fake1")
		require.Contains(t, string(*f.lastAudit().Result), `"link_issued":true`)
	})

	t.Run("manual join fallback", func(t *testing.T) {
		f := newFixture(t)
		f.api.FailNext("createChatInviteLink", telegramtest.Forbidden("Forbidden: not enough rights"))
		resp := f.handle(body)
		require.True(t, resp.Body.Success)

		dm := f.api.CallsOf("sendMessage")[0]
		require.Equal(t, invitelink.ManualJoinMessage, dm.Text)
		require.Len(t, f.api.CallsOf("answerCallbackQuery"), 1)
	})

	t.Run("unknown data still answered", func(t *testing.T) {
		f := newFixture(t)
		resp := f.handle(fmt.Sprintf(`{"update_id":6,"callback_query":{"id":"cb2","from":{"id":%d},"data":"noop"}}`, userID))
		require.True(t, resp.Body.Success)
		require.Equal(t, []string{"answerCallbackQuery"}, f.api.Methods())
		require.False(t, f.lastAudit().Handled)
	})
}

func TestHandle_PreCheckout(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		wantOK bool
	}{
		{name: "matching amount", amount: 50, wantOK: true},
		{name: "wrong amount", amount: 10, wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			body := fmt.Sprintf(`{"update_id":8,"pre_checkout_query":{"id":"q1","from":{"id":%d},"currency":"XTR","total_amount":%d,"invoice_payload":%q}}`,
				userID, tt.amount, payment.InvoicePayload("c1", "plan-m"))
			resp := f.handle(body)
			require.True(t, resp.Body.Success)

			calls := f.api.CallsOf("answerPreCheckoutQuery")
			require.Len(t, calls, 1)
			require.Equal(t, "q1", calls[0].QueryID)
			require.Equal(t, tt.wantOK, calls[0].OK)
		})
	}
}

func TestHandle_SuccessfulPayment(t *testing.T) {
	f := newFixture(t)
	body := fmt.Sprintf(`{"update_id":9,"message":{"message_id":3,"from":{"id":%d,"username":"ann"},"chat":{"id":%d,"type":"private"},"date":1,
		"successful_payment":{"currency":"XTR","total_amount":50,"invoice_payload":%q,"telegram_payment_charge_id":"tg-1","provider_payment_charge_id":"pv-1"}}}`,
		userID, userID, payment.InvoicePayload("c1", "plan-m"))

	resp := f.handle(body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, resp.Body.Success)
	require.Equal(t, string(KindSuccessfulPayment), f.lastAudit().Kind)

	m := f.member(userID, "c1")
	require.Equal(t, types.SubscriptionStatusActive, m.SubscriptionStatus)
	require.True(t, m.HasLiveSubscription(time.Now()))
	require.Len(t, f.api.CallsOf("createChatInviteLink"), 1)

	// A redelivered update is recorded again in the audit log but has no further effect.
	f.handle(body)
	require.Len(t, f.api.CallsOf("createChatInviteLink"), 1)
	require.Contains(t, string(*f.lastAudit().Result), `"duplicate":true`)
}

func TestHandle_VerifyCommand(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		chatType string
		bound    bool
	}{
		{name: "group", text: "/verify abc123", chatType: "supergroup", bound: true},
		{name: "addressed to this bot", text: "/verify@tollgate_bot abc123", chatType: "group", bound: true},
		{name: "addressed to another bot", text: "/verify@other_bot abc123", chatType: "group"},
		{name: "wrong code", text: "/verify nope", chatType: "group"},
		{name: "private chat", text: "/verify abc123", chatType: "private"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			body := fmt.Sprintf(`{"update_id":11,"message":{"message_id":1,"from":{"id":%d},"chat":{"id":-2002,"type":%q},"date":1,"text":%q}}`,
				userID, tt.chatType, tt.text)
			resp := f.handle(body)
			require.True(t, resp.Body.Success)

			c, err := f.store.FindCommunity(context.Background(), "c2")
			require.NoError(t, err)
			if tt.bound {
				require.NotNil(t, c.ExternalChatID)
				require.EqualValues(t, -2002, *c.ExternalChatID)
				require.Equal(t, models.WebhookEventLogStatusHandled, f.lastAudit().Status)
				return
			}
			require.Nil(t, c.ExternalChatID)
			require.False(t, f.lastAudit().Handled)
		})
	}
}

func TestHandle_VerifyFromChannelPost(t *testing.T) {
	f := newFixture(t)
	resp := f.handle(`{"update_id":12,"channel_post":{"message_id":1,"chat":{"id":-3003,"type":"channel"},"date":1,"text":"/verify abc123"}}`)
	require.True(t, resp.Body.Success)

	c, err := f.store.FindCommunityByChatID(context.Background(), -3003)
	require.NoError(t, err)
	require.Equal(t, "c2", c.ID)
	require.Equal(t, int64(-3003), f.api.CallsOf("sendMessage")[0].ChatID)
}

func TestHandle_StatusCommand(t *testing.T) {
	f := newFixture(t)
	f.handle(privateMessage("/status"))
	require.Equal(t, "You have no memberships yet.", f.api.CallsOf("sendMessage")[0].Text)

	require.NoError(t, f.store.UpsertMember(context.Background(), &models.Member{
		ExternalUserID:     userID,
		CommunityID:        "c1",
		SubscriptionStatus: types.SubscriptionStatusActive,
		SubscriptionEnd:    lo.ToPtr(time.Date(2099, 1, 2, 0, 0, 0, 0, time.UTC)),
	}))
	f.handle(privateMessage("/status"))
	text := f.api.CallsOf("sendMessage")[1].Text
	require.Contains(t, text, "Paid Club: active")
	require.Contains(t, text, "until 2099-01-02")
}

func TestHandle_PlainMessagesAcknowledged(t *testing.T) {
	f := newFixture(t)
	resp := f.handle(privateMessage("hello"))
	require.True(t, resp.Body.Success)
	require.Equal(t, models.WebhookEventLogStatusIgnored, f.lastAudit().Status)

	resp = f.handle(fmt.Sprintf(`{"update_id":13,"edited_message":{"message_id":1,"chat":{"id":%d,"type":"private"},"text":"/status"}}`, userID))
	require.True(t, resp.Body.Success)
	require.Equal(t, string(KindEditedMessage), f.lastAudit().Kind)
	require.Empty(t, f.api.Calls())
}

type panickingStore struct {
	*store.MemoryStore
}

func (panickingStore) FindCommunityByChatID(context.Context, int64) (*models.Community, error) {
	panic("boom")
}

type failingStore struct {
	*store.MemoryStore
	createErr error
	findErr   error
}

func (s failingStore) CreateEventLog(ctx context.Context, l *models.WebhookEventLog) error {
	if s.createErr != nil {
		return s.createErr
	}
	return s.MemoryStore.CreateEventLog(ctx, l)
}

func (s failingStore) FindCommunityByChatID(ctx context.Context, chatID int64) (*models.Community, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.MemoryStore.FindCommunityByChatID(ctx, chatID)
}

func TestHandle_HandlerPanicIsContained(t *testing.T) {
	mem := store.NewMemoryStore()
	f := buildFixture(t, mem, panickingStore{mem})

	resp := f.handle(chatMemberUpdate("member", false))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.False(t, resp.Body.Success)
	require.Contains(t, resp.Body.Message, "boom")

	audit := f.lastAudit()
	require.Equal(t, models.WebhookEventLogStatusHandleFailed, audit.Status)
	require.False(t, audit.Handled)
}

func TestHandle_HandlerErrorIsContained(t *testing.T) {
	mem := store.NewMemoryStore()
	f := buildFixture(t, mem, failingStore{MemoryStore: mem, findErr: errors.New("db down")})

	resp := f.handle(chatMemberUpdate("member", false))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.False(t, resp.Body.Success)
	require.Contains(t, string(*f.lastAudit().Result), "db down")
}

func TestHandle_AuditWriteFailure(t *testing.T) {
	mem := store.NewMemoryStore()
	f := buildFixture(t, mem, failingStore{MemoryStore: mem, createErr: errors.New("db down")})

	resp := f.handle(chatMemberUpdate("member", false))
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.False(t, resp.Body.Success)
	require.Empty(t, f.api.Calls())
}
