package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fatflowers/tollgate/internal/app/service/invitelink"
	"github.com/fatflowers/tollgate/internal/app/service/membership"
	"github.com/fatflowers/tollgate/internal/apperr"
	"github.com/fatflowers/tollgate/internal/models"
	"github.com/fatflowers/tollgate/internal/platform/telegram"
	"github.com/fatflowers/tollgate/internal/store"
	"github.com/fatflowers/tollgate/pkg/logctx"
	"github.com/fatflowers/tollgate/pkg/metrics"
	"github.com/fatflowers/tollgate/pkg/types"
)

const payloadPrefix = "sub"

// InvoicePayload encodes the purchase target carried through Telegram payments.
func InvoicePayload(communityID, planID string) string {
	return strings.Join([]string{payloadPrefix, communityID, planID}, ":")
}

// ParseInvoicePayload decodes "sub:<communityID>:<planID>".
func ParseInvoicePayload(payload string) (communityID, planID string, err error) {
	parts := strings.Split(payload, ":")
	if len(parts) != 3 || parts[0] != payloadPrefix || parts[1] == "" || parts[2] == "" {
		return "", "", apperr.Validation("invoice payload", "malformed payload %q", payload)
	}
	return parts[1], parts[2], nil
}

// minorUnitExponent is the number of decimals Telegram uses in total_amount for currency.
func minorUnitExponent(currency string) int32 {
	switch strings.ToUpper(currency) {
	case "XTR", "JPY", "KRW", "VND", "CLP", "ISK", "UGX":
		return 0
	}
	return 2
}

// FromMinorUnits converts a Telegram total_amount into a decimal amount.
func FromMinorUnits(amount int64, currency string) decimal.Decimal {
	return decimal.New(amount, -minorUnitExponent(currency))
}

// PreCheckout is a pre_checkout_query awaiting an answer.
type PreCheckout struct {
	QueryID     string
	UserID      int64
	Currency    string
	TotalAmount int64
	Payload     string
}

// SuccessfulPayment is a successful_payment service message.
type SuccessfulPayment struct {
	UserID           int64
	Username         string
	Currency         string
	TotalAmount      int64
	Payload          string
	TelegramChargeID string
	ProviderChargeID string
}

// Outcome reports what a completed payment changed.
type Outcome struct {
	Payment *models.Payment `json:"payment"`
	Member  *models.Member  `json:"member,omitempty"`
	// InviteLink is empty when no link could be issued; the payer was sent a manual-join message instead.
	InviteLink string `json:"invite_link,omitempty"`
	Duplicate  bool   `json:"duplicate"`
}

type Service struct {
	store   store.Store
	members *membership.Service
	links   *invitelink.Manager
	gw      *telegram.Gateway
	log     *zap.SugaredLogger
	rec     *metrics.Recorder
	now     func() time.Time
}

func New(st store.Store, members *membership.Service, links *invitelink.Manager, gw *telegram.Gateway, log *zap.SugaredLogger, rec *metrics.Recorder) *Service {
	return &Service{store: st, members: members, links: links, gw: gw, log: log, rec: rec, now: time.Now}
}

// plan resolves and checks the purchase target of a payload.
func (s *Service) plan(ctx context.Context, payload string) (*models.SubscriptionPlan, error) {
	communityID, planID, err := ParseInvoicePayload(payload)
	if err != nil {
		return nil, err
	}
	plan, err := s.store.FindPlan(ctx, planID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Validation("invoice payload", "plan %s not found", planID)
	}
	if err != nil {
		return nil, apperr.Store("find plan", err)
	}
	if plan.CommunityID != communityID {
		return nil, apperr.Validation("invoice payload", "plan %s does not belong to community %s", planID, communityID)
	}
	return plan, nil
}

// CheckPreCheckout returns a validation error describing why the order cannot be accepted.
func (s *Service) CheckPreCheckout(ctx context.Context, q PreCheckout) error {
	plan, err := s.plan(ctx, q.Payload)
	if err != nil {
		return err
	}
	if !plan.IsActive {
		return apperr.Validation("pre checkout", "plan is no longer available")
	}
	if !strings.EqualFold(plan.Currency, q.Currency) {
		return apperr.Validation("pre checkout", "currency %s does not match plan currency %s", q.Currency, plan.Currency)
	}
	if !FromMinorUnits(q.TotalAmount, q.Currency).Equal(plan.Price) {
		return apperr.Validation("pre checkout", "amount does not match plan price")
	}
	return nil
}

// ValidatePreCheckout checks the order and answers the query. The returned bool is the answer sent.
func (s *Service) ValidatePreCheckout(ctx context.Context, q PreCheckout) (bool, error) {
	log := logctx.FromCtx(ctx, s.log).With("query_id", q.QueryID, "user_id", q.UserID)

	checkErr := s.CheckPreCheckout(ctx, q)
	if checkErr != nil && !apperr.Is(checkErr, apperr.KindValidation) {
		return false, checkErr
	}
	ok := checkErr == nil
	var reason string
	if !ok {
		reason = apperr.Description(checkErr)
		log.Infow("pre_checkout_rejected", "reason", reason)
	}
	if err := s.gw.AnswerPreCheckout(ctx, q.QueryID, ok, reason); err != nil {
		return ok, err
	}
	return ok, nil
}

// RecordSuccessful stores a Telegram payment and completes it. Repeated deliveries of the
// same charge are reported as duplicates without side effects.
func (s *Service) RecordSuccessful(ctx context.Context, sp SuccessfulPayment) (Outcome, error) {
	if sp.UserID == 0 {
		return Outcome{}, apperr.Validation("successful payment", "payer id is required")
	}
	if sp.TelegramChargeID == "" {
		return Outcome{}, apperr.Validation("successful payment", "telegram charge id is required")
	}
	plan, err := s.plan(ctx, sp.Payload)
	if err != nil {
		return Outcome{}, err
	}
	return s.Complete(ctx, &models.Payment{
		CommunityID:      plan.CommunityID,
		PlanID:           plan.ID,
		PayerExternalID:  sp.UserID,
		PayerUsername:    sp.Username,
		Status:           types.PaymentStatusSuccessful,
		Provider:         types.PaymentProviderTelegram,
		ProviderChargeID: lo.ToPtr(sp.TelegramChargeID),
		Amount:           FromMinorUnits(sp.TotalAmount, sp.Currency),
		Currency:         strings.ToUpper(sp.Currency),
	})
}

// Complete records a successful payment from any gateway. A payer identified only by username
// is stored for later matching on join; a payer with an id is renewed and sent a personal link.
func (s *Service) Complete(ctx context.Context, p *models.Payment) (Outcome, error) {
	if p == nil || p.CommunityID == "" || p.PlanID == "" {
		return Outcome{}, apperr.Validation("complete payment", "community id and plan id are required")
	}
	if p.PayerExternalID == 0 && p.PayerUsername == "" {
		return Outcome{}, apperr.Validation("complete payment", "payer id or username is required")
	}
	if p.Status == "" {
		p.Status = types.PaymentStatusSuccessful
	}
	if !p.Successful() {
		return Outcome{}, apperr.Validation("complete payment", "payment status %q is not successful", p.Status)
	}
	start := s.now()
	defer s.rec.ObserveSince("payment", "complete", start)
	log := logctx.FromCtx(ctx, s.log).With("community_id", p.CommunityID, "plan_id", p.PlanID, "user_id", p.PayerExternalID)

	stored, created, err := s.store.CreatePayment(ctx, p)
	if err != nil {
		return Outcome{}, apperr.Store("create payment", err)
	}
	out := Outcome{Payment: stored, Duplicate: !created}
	if !created {
		log.Infow("payment_duplicate", "payment_id", stored.ID)
		return out, nil
	}
	log.Infow("payment_recorded", "payment_id", stored.ID, "amount", stored.Amount.String(), "currency", stored.Currency)
	if stored.PayerExternalID == 0 {
		return out, nil
	}

	out.Member, err = s.members.Renew(ctx, stored)
	if err != nil {
		return out, fmt.Errorf("renew membership: %w", err)
	}

	link, err := s.links.IssuePersonal(ctx, stored.CommunityID, stored.PayerExternalID, stored.ID)
	if err != nil {
		log.Warnw("payment_invite_link_unavailable", "payment_id", stored.ID, "err", err)
	}
	out.InviteLink = link
	if err := s.gw.SendText(ctx, stored.PayerExternalID, s.confirmation(ctx, stored, out.Member, link)); err != nil {
		log.Warnw("payment_confirmation_send_failed", "payment_id", stored.ID, "err", err)
	}
	return out, nil
}

func (s *Service) confirmation(ctx context.Context, p *models.Payment, m *models.Member, link string) string {
	name := "the community"
	if c, err := s.store.FindCommunity(ctx, p.CommunityID); err == nil {
		name = c.Name
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Payment received for %s.", name)
	if m != nil && m.SubscriptionEnd != nil {
		fmt.Fprintf(&b, " Your access is valid until %s.", m.SubscriptionEnd.UTC().Format("2006-01-02"))
	}
	if link != "" {
		fmt.Fprintf(&b, "\nJoin here: %s", link)
	} else {
		b.WriteString("\n" + invitelink.ManualJoinMessage)
	}
	return b.String()
}
