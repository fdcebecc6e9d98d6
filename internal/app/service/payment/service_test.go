package payment

import (
	"context"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/tollgate/internal/app/service/invitelink"
	"github.com/fatflowers/tollgate/internal/app/service/membership"
	"github.com/fatflowers/tollgate/internal/apperr"
	"github.com/fatflowers/tollgate/internal/models"
	"github.com/fatflowers/tollgate/internal/platform/cache"
	"github.com/fatflowers/tollgate/internal/platform/telegram/telegramtest"
	"github.com/fatflowers/tollgate/internal/store"
	"github.com/fatflowers/tollgate/pkg/config"
	"github.com/fatflowers/tollgate/pkg/types"
)

func newService(t *testing.T) (*Service, *store.MemoryStore, *telegramtest.FakeAPI) {
	t.Helper()
	st := store.NewMemoryStore()
	st.PutCommunity(&models.Community{ID: "c1", Name: "Alpha Club", ExternalChatID: lo.ToPtr(int64(-1001))})
	st.PutCommunity(&models.Community{ID: "c2", Name: "Beta"})
	st.PutPlan(&models.SubscriptionPlan{ID: "plan-m", CommunityID: "c1", Name: "Monthly", Interval: types.PlanIntervalMonthly, Price: decimal.RequireFromString("9.99"), Currency: "USD", IsActive: true})
	st.PutPlan(&models.SubscriptionPlan{ID: "plan-stars", CommunityID: "c1", Name: "Stars", Interval: types.PlanIntervalMonthly, Price: decimal.NewFromInt(250), Currency: "XTR", IsActive: true})
	st.PutPlan(&models.SubscriptionPlan{ID: "plan-old", CommunityID: "c1", Name: "Old", Interval: types.PlanIntervalYearly, Price: decimal.NewFromInt(50), Currency: "USD", IsActive: false})

	cfg := &config.Config{
		Membership: config.MembershipConfig{AutoEvict: true},
		Invite:     config.InviteConfig{Expiry: 24 * time.Hour, PersonalMemberLimit: 1},
	}
	api := telegramtest.NewFakeAPI()
	gw := telegramtest.NewGateway(api)
	log := zap.NewNop().Sugar()
	links := invitelink.New(st, gw, cache.NewMemoryLinkCache(), cfg, log)
	members := membership.New(st, gw, links, cfg, log, nil)
	return New(st, members, links, gw, log, nil), st, api
}

func TestParseInvoicePayload(t *testing.T) {
	c, p, err := ParseInvoicePayload(InvoicePayload("c1", "plan-m"))
	require.NoError(t, err)
	require.Equal(t, "c1", c)
	require.Equal(t, "plan-m", p)

	for _, bad := range []string{"", "sub:c1", "sub::p", "gift:c1:p", "sub:c1:p:extra"} {
		_, _, err := ParseInvoicePayload(bad)
		require.True(t, apperr.Is(err, apperr.KindValidation), bad)
	}
}

func TestFromMinorUnits(t *testing.T) {
	require.True(t, decimal.RequireFromString("9.99").Equal(FromMinorUnits(999, "usd")))
	require.True(t, decimal.NewFromInt(250).Equal(FromMinorUnits(250, "XTR")))
}

func TestCheckPreCheckout(t *testing.T) {
	s, _, _ := newService(t)
	tests := []struct {
		name    string
		q       PreCheckout
		wantErr bool
	}{
		{name: "ok", q: PreCheckout{Payload: "sub:c1:plan-m", Currency: "USD", TotalAmount: 999}},
		{name: "ok stars", q: PreCheckout{Payload: "sub:c1:plan-stars", Currency: "XTR", TotalAmount: 250}},
		{name: "malformed", q: PreCheckout{Payload: "plan-m", Currency: "USD", TotalAmount: 999}, wantErr: true},
		{name: "unknown plan", q: PreCheckout{Payload: "sub:c1:nope", Currency: "USD", TotalAmount: 999}, wantErr: true},
		{name: "plan of another community", q: PreCheckout{Payload: "sub:c2:plan-m", Currency: "USD", TotalAmount: 999}, wantErr: true},
		{name: "inactive plan", q: PreCheckout{Payload: "sub:c1:plan-old", Currency: "USD", TotalAmount: 5000}, wantErr: true},
		{name: "wrong currency", q: PreCheckout{Payload: "sub:c1:plan-m", Currency: "EUR", TotalAmount: 999}, wantErr: true},
		{name: "wrong amount", q: PreCheckout{Payload: "sub:c1:plan-m", Currency: "USD", TotalAmount: 100}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.CheckPreCheckout(context.Background(), tt.q)
			if tt.wantErr {
				require.True(t, apperr.Is(err, apperr.KindValidation))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestValidatePreCheckout_Answers(t *testing.T) {
	s, _, api := newService(t)

	ok, err := s.ValidatePreCheckout(context.Background(), PreCheckout{QueryID: "q1", Payload: "sub:c1:plan-m", Currency: "USD", TotalAmount: 999})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.ValidatePreCheckout(context.Background(), PreCheckout{QueryID: "q2", Payload: "sub:c1:plan-m", Currency: "USD", TotalAmount: 1})
	require.NoError(t, err)
	require.False(t, ok)

	calls := api.CallsOf("answerPreCheckoutQuery")
	require.Len(t, calls, 2)
	require.True(t, calls[0].OK)
	require.Equal(t, "q2", calls[1].QueryID)
	require.False(t, calls[1].OK)
	require.Equal(t, "amount does not match plan price", calls[1].Text)
}

func TestRecordSuccessful(t *testing.T) {
	s, st, api := newService(t)
	ctx := context.Background()
	sp := SuccessfulPayment{UserID: 42, Username: "alice", Currency: "USD", TotalAmount: 999, Payload: "sub:c1:plan-m", TelegramChargeID: "tg-1"}

	out, err := s.RecordSuccessful(ctx, sp)
	require.NoError(t, err)
	require.False(t, out.Duplicate)
	require.Equal(t, "https://t.me/+fake1", out.InviteLink)
	require.Equal(t, types.SubscriptionStatusActive, out.Member.SubscriptionStatus)
	require.True(t, decimal.RequireFromString("9.99").Equal(out.Payment.Amount))
	require.Equal(t, out.Payment.CreatedAt.AddDate(0, 1, 0), *out.Member.SubscriptionEnd)

	p, err := st.FindPayment(ctx, out.Payment.ID)
	require.NoError(t, err)
	require.Equal(t, out.InviteLink, *p.InviteLink)

	dms := api.CallsOf("sendMessage")
	require.Len(t, dms, 1)
	require.Equal(t, int64(42), dms[0].ChatID)
	require.Contains(t, dms[0].Text, "Alpha Club")
	require.Contains(t, dms[0].Text, out.InviteLink)

	again, err := s.RecordSuccessful(ctx, sp)
	require.NoError(t, err)
	require.True(t, again.Duplicate)
	require.Equal(t, out.Payment.ID, again.Payment.ID)
	require.Len(t, api.CallsOf("createChatInviteLink"), 1)
	require.Len(t, api.CallsOf("sendMessage"), 1)
}

func TestRecordSuccessful_LinkFailureSendsManualJoin(t *testing.T) {
	s, _, api := newService(t)
	api.FailNext("createChatInviteLink", telegramtest.Forbidden("Forbidden: not enough rights"))

	out, err := s.RecordSuccessful(context.Background(), SuccessfulPayment{UserID: 42, Currency: "USD", TotalAmount: 999, Payload: "sub:c1:plan-m", TelegramChargeID: "tg-2"})
	require.NoError(t, err)
	require.Empty(t, out.InviteLink)
	require.Equal(t, types.SubscriptionStatusActive, out.Member.SubscriptionStatus)
	require.Contains(t, api.CallsOf("sendMessage")[0].Text, invitelink.ManualJoinMessage)
}

func TestRecordSuccessful_Validation(t *testing.T) {
	s, _, _ := newService(t)
	_, err := s.RecordSuccessful(context.Background(), SuccessfulPayment{UserID: 42, Payload: "sub:c1:plan-m"})
	require.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = s.RecordSuccessful(context.Background(), SuccessfulPayment{UserID: 42, Payload: "bad", TelegramChargeID: "x"})
	require.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestComplete_UsernameOnlyPayerIsMatchedOnJoin(t *testing.T) {
	s, st, api := newService(t)
	ctx := context.Background()

	out, err := s.Complete(ctx, &models.Payment{
		CommunityID:      "c1",
		PlanID:           "plan-m",
		PayerUsername:    "bob",
		Provider:         types.PaymentProviderExternal,
		ProviderChargeID: lo.ToPtr("ext-1"),
		Amount:           decimal.RequireFromString("9.99"),
		Currency:         "USD",
	})
	require.NoError(t, err)
	require.Nil(t, out.Member)
	require.Equal(t, types.PaymentStatusSuccessful, out.Payment.Status)
	require.Empty(t, api.Calls())

	m, err := s.members.Join(ctx, membership.JoinInput{UserID: 77, CommunityID: "c1", Username: "bob"})
	require.NoError(t, err)
	require.Equal(t, types.SubscriptionStatusActive, m.SubscriptionStatus)

	_, err = st.FindMember(ctx, 77, "c1")
	require.NoError(t, err)
}

func TestComplete_Validation(t *testing.T) {
	s, _, _ := newService(t)
	_, err := s.Complete(context.Background(), &models.Payment{CommunityID: "c1", PlanID: "plan-m"})
	require.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = s.Complete(context.Background(), &models.Payment{CommunityID: "c1", PlanID: "plan-m", PayerExternalID: 1, Status: types.PaymentStatusFailed})
	require.True(t, apperr.Is(err, apperr.KindValidation))
}
