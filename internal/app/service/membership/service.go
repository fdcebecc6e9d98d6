package membership

import (
	"context"
	"errors"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fatflowers/tollgate/internal/app/service/invitelink"
	"github.com/fatflowers/tollgate/internal/app/service/subscription"
	"github.com/fatflowers/tollgate/internal/apperr"
	"github.com/fatflowers/tollgate/internal/models"
	"github.com/fatflowers/tollgate/internal/platform/telegram"
	"github.com/fatflowers/tollgate/internal/store"
	"github.com/fatflowers/tollgate/pkg/config"
	"github.com/fatflowers/tollgate/pkg/logctx"
	"github.com/fatflowers/tollgate/pkg/metrics"
	"github.com/fatflowers/tollgate/pkg/types"
)

type Service struct {
	store     store.Store
	gw        *telegram.Gateway
	links     *invitelink.Manager
	autoEvict bool
	log       *zap.SugaredLogger
	rec       *metrics.Recorder
	now       func() time.Time
}

func New(st store.Store, gw *telegram.Gateway, links *invitelink.Manager, cfg *config.Config, log *zap.SugaredLogger, rec *metrics.Recorder) *Service {
	return &Service{
		store:     st,
		gw:        gw,
		links:     links,
		autoEvict: cfg.Membership.AutoEvict,
		log:       log,
		rec:       rec,
		now:       time.Now,
	}
}

// JoinInput identifies a user who appeared in a community chat.
type JoinInput struct {
	UserID      int64
	CommunityID string
	Username    string
	FirstName   string
}

// KickOutcome reports a forced removal. The member row is updated even when the platform call failed.
type KickOutcome struct {
	TelegramSuccess bool `json:"telegram_success"`
	// Partial is set when the user was removed but the follow-up unban failed.
	Partial bool           `json:"partial"`
	Member  *models.Member `json:"member"`
}

func (s *Service) find(ctx context.Context, userID int64, communityID string) (*models.Member, error) {
	m, err := s.store.FindMember(ctx, userID, communityID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Store("find member", err)
	}
	return m, nil
}

// GrantFor derives the paid window of the latest successful payment matching q.
// It returns nil without error when the user never paid.
func (s *Service) GrantFor(ctx context.Context, q store.PaymentLookup) (*Grant, error) {
	p, err := s.store.FindLatestSuccessfulPayment(ctx, q)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Store("find latest payment", err)
	}
	plan, err := s.plan(ctx, p.PlanID)
	if err != nil {
		return nil, err
	}
	return &Grant{
		PlanID:    p.PlanID,
		PaymentID: p.ID,
		Window:    subscription.WindowForPayment(plan, p),
	}, nil
}

// plan returns nil for a deleted plan; the payment then grants the default window.
func (s *Service) plan(ctx context.Context, id string) (*models.SubscriptionPlan, error) {
	if id == "" {
		return nil, nil
	}
	plan, err := s.store.FindPlan(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Store("find plan", err)
	}
	return plan, nil
}

// Join records a user's presence and activates a paid window when one is live.
func (s *Service) Join(ctx context.Context, in JoinInput) (*models.Member, error) {
	if in.UserID == 0 || in.CommunityID == "" {
		return nil, apperr.Validation("join", "user id and community id are required")
	}
	current, err := s.find(ctx, in.UserID, in.CommunityID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	var grant *Grant
	if !current.HasLiveSubscription(now) {
		grant, err = s.GrantFor(ctx, store.PaymentLookup{UserID: in.UserID, Username: in.Username, CommunityID: in.CommunityID})
		if err != nil {
			return nil, err
		}
	}
	tr := Apply(current, Event{
		Kind:        EventJoin,
		UserID:      in.UserID,
		CommunityID: in.CommunityID,
		Username:    in.Username,
		FirstName:   in.FirstName,
	}, grant, now)
	return s.Commit(ctx, current, tr, types.MemberChangeReasonJoin)
}

// Leave marks the member as gone from the chat. A ban (kicked) also sets status removed.
// Unknown members are ignored.
func (s *Service) Leave(ctx context.Context, userID int64, communityID string, kicked bool) (*models.Member, error) {
	current, err := s.find(ctx, userID, communityID)
	if err != nil || current == nil {
		return nil, err
	}
	tr := Apply(current, Event{Kind: EventLeave, UserID: userID, CommunityID: communityID, Kicked: kicked}, nil, s.now())
	m, err := s.Commit(ctx, current, tr, types.MemberChangeReasonLeave)
	if err != nil {
		return nil, err
	}
	if tr.Has(IntentInvalidateInvite) {
		s.invalidate(ctx, m)
	}
	return m, nil
}

// Expire ends a lapsed subscription. With auto-evict on, a present member is removed from the
// chat first; the row is marked expired whatever the platform answered.
// A member renewed in the meantime, or no longer active, is returned unchanged.
func (s *Service) Expire(ctx context.Context, member *models.Member) (*models.Member, error) {
	if member == nil {
		return nil, apperr.Validation("expire", "member is required")
	}
	start := s.now()
	defer s.rec.ObserveSince("membership", "expire", start)

	current, err := s.find(ctx, member.ExternalUserID, member.CommunityID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperr.Store("expire", store.ErrNotFound)
	}
	now := s.now()
	if current.SubscriptionStatus != types.SubscriptionStatusActive || current.HasLiveSubscription(now) {
		return current, nil
	}

	tr := Apply(current, Event{Kind: EventExpire, AutoEvict: s.autoEvict}, nil, now)
	if tr.Has(IntentEvict) {
		s.evict(ctx, current)
	}
	m, err := s.Commit(ctx, current, tr, types.MemberChangeReasonExpire)
	if err != nil {
		return nil, err
	}
	if tr.Has(IntentInvalidateInvite) {
		s.invalidate(ctx, m)
	}
	return m, nil
}

// Kick removes the member from the chat and sets status to removed or expired.
// Platform failures are reported in the outcome; only Store failures are returned.
func (s *Service) Kick(ctx context.Context, member *models.Member, status types.SubscriptionStatus) (KickOutcome, error) {
	if member == nil {
		return KickOutcome{}, apperr.Validation("kick", "member is required")
	}
	if status != types.SubscriptionStatusRemoved && status != types.SubscriptionStatusExpired {
		return KickOutcome{}, apperr.Validation("kick", "unsupported kick status %q", status)
	}
	start := s.now()
	defer s.rec.ObserveSince("membership", "kick", start)

	current, err := s.find(ctx, member.ExternalUserID, member.CommunityID)
	if err != nil {
		return KickOutcome{}, err
	}
	if current == nil {
		return KickOutcome{}, apperr.Store("kick", store.ErrNotFound)
	}

	var out KickOutcome
	out.TelegramSuccess, out.Partial = s.evict(ctx, current)

	tr := Apply(current, Event{Kind: EventKick, Status: status}, nil, s.now())
	m, err := s.Commit(ctx, current, tr, types.MemberChangeReasonKick)
	if err != nil {
		return out, err
	}
	out.Member = m
	s.invalidate(ctx, m)
	return out, nil
}

// Renew applies a successful payment: the window stacks onto a running subscription.
// Applying the same payment twice is a no-op.
func (s *Service) Renew(ctx context.Context, p *models.Payment) (*models.Member, error) {
	if !p.Successful() {
		return nil, apperr.Validation("renew", "payment is not successful")
	}
	current, err := s.find(ctx, p.PayerExternalID, p.CommunityID)
	if err != nil {
		return nil, err
	}
	if current != nil && current.LastPaymentID != nil && *current.LastPaymentID == p.ID {
		return current, nil
	}
	plan, err := s.plan(ctx, p.PlanID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	var interval types.PlanInterval
	if plan != nil {
		interval = plan.Interval
	}
	var currentEnd *time.Time
	if current.HasLiveSubscription(now) {
		currentEnd = current.SubscriptionEnd
	}
	grant := &Grant{
		PlanID:    p.PlanID,
		PaymentID: p.ID,
		Window:    subscription.ExtendWindow(currentEnd, interval, p.CreatedAt),
	}
	tr := Apply(current, Event{
		Kind:        EventRenew,
		UserID:      p.PayerExternalID,
		CommunityID: p.CommunityID,
		Username:    p.PayerUsername,
	}, grant, now)
	return s.Commit(ctx, current, tr, types.MemberChangeReasonRenew)
}

// Commit persists a transition and logs it asynchronously. An unchanged transition is not written.
func (s *Service) Commit(ctx context.Context, before *models.Member, tr Transition, reason types.MemberChangeReason) (*models.Member, error) {
	if tr.Member == nil {
		return nil, nil
	}
	if !tr.Changed {
		return tr.Member, nil
	}
	if err := s.store.UpsertMember(ctx, tr.Member); err != nil {
		return nil, apperr.Store("upsert member", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("member_transition",
		"reason", reason,
		"user_id", tr.Member.ExternalUserID,
		"community_id", tr.Member.CommunityID,
		"status", tr.Member.SubscriptionStatus,
		"is_active", tr.Member.IsActive,
		"intents", tr.Intents,
	)
	s.saveLog(ctx, before, tr, reason)
	return tr.Member, nil
}

func (s *Service) saveLog(ctx context.Context, before *models.Member, tr Transition, reason types.MemberChangeReason) {
	entry := &models.MemberLog{
		UserID:      tr.Member.ExternalUserID,
		CommunityID: tr.Member.CommunityID,
		Reason:      reason,
		Before:      datatypes.NewJSONType(before.Clone()),
		After:       datatypes.NewJSONType(tr.Member.Clone()),
		Intents:     datatypes.NewJSONType(lo.Map(tr.Intents, func(i Intent, _ int) string { return string(i) })),
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := s.store.SaveMemberLog(ctx, entry); err != nil {
			logctx.FromCtx(ctx, s.log).Errorw("member_log_save_failed", "err", err)
		}
	}()
}

// evict removes the member from the chat. It reports whether the removal happened and
// whether it was only partial.
func (s *Service) evict(ctx context.Context, m *models.Member) (removed, partial bool) {
	log := logctx.FromCtx(ctx, s.log).With("user_id", m.ExternalUserID, "community_id", m.CommunityID)

	c, err := s.store.FindCommunity(ctx, m.CommunityID)
	if err != nil || !c.CanAdmit() {
		log.Warnw("evict_skipped_unverified_community", "err", err)
		return false, false
	}
	res, err := s.gw.Kick(ctx, *c.ExternalChatID, m.ExternalUserID)
	switch {
	case err == nil:
	case apperr.Is(err, apperr.KindPartialFailure):
		log.Warnw("evict_partial", "err", err)
		partial = true
	default:
		log.Errorw("evict_failed", "err", err)
	}
	return res.Removed, partial
}

func (s *Service) invalidate(ctx context.Context, m *models.Member) {
	if s.links == nil {
		return
	}
	if err := s.links.Invalidate(ctx, m); err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("invite_invalidate_failed",
			"user_id", m.ExternalUserID, "community_id", m.CommunityID, "err", err)
	}
}
