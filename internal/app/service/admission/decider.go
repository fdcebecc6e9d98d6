package admission

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/fatflowers/tollgate/internal/app/service/membership"
	"github.com/fatflowers/tollgate/internal/apperr"
	"github.com/fatflowers/tollgate/internal/models"
	"github.com/fatflowers/tollgate/internal/platform/telegram"
	"github.com/fatflowers/tollgate/internal/store"
	"github.com/fatflowers/tollgate/pkg/logctx"
	"github.com/fatflowers/tollgate/pkg/metrics"
	"github.com/fatflowers/tollgate/pkg/types"
)

const (
	ReasonActiveSubscription = "active subscription"
	ReasonGraceReentry       = "grace re-entry for expired subscription"
	ReasonPaymentFound       = "successful payment found"
	ReasonNoSubscription     = "no active subscription or payment found"
	ReasonUnknownCommunity   = "community not registered"
)

// Request is a chat join request.
type Request struct {
	ChatID    int64
	UserID    int64
	Username  string
	FirstName string
}

// Decision is final once returned; PlatformAcknowledged only reports whether Telegram accepted the answer.
type Decision struct {
	Approved             bool
	Reason               string
	PlatformAcknowledged bool
	Member               *models.Member
}

type Decider struct {
	store   store.Store
	members *membership.Service
	gw      *telegram.Gateway
	log     *zap.SugaredLogger
	rec     *metrics.Recorder
	now     func() time.Time
}

func New(st store.Store, members *membership.Service, gw *telegram.Gateway, log *zap.SugaredLogger, rec *metrics.Recorder) *Decider {
	return &Decider{store: st, members: members, gw: gw, log: log, rec: rec, now: time.Now}
}

// Decide approves or declines a join request. Store writes happen before the platform answer,
// and a failed answer does not change the decision.
func (d *Decider) Decide(ctx context.Context, req Request) (Decision, error) {
	if req.ChatID == 0 || req.UserID == 0 {
		return Decision{}, apperr.Validation("admission", "chat id and user id are required")
	}
	start := d.now()
	defer d.rec.ObserveSince("admission", "decide", start)
	log := logctx.FromCtx(ctx, d.log).With("chat_id", req.ChatID, "user_id", req.UserID)

	dec, err := d.decide(ctx, req)
	if err != nil {
		return Decision{}, err
	}
	log.Infow("admission_decided", "approved", dec.Approved, "reason", dec.Reason)
	d.rec.Admission(dec.Approved, dec.Reason)

	if dec.Approved {
		err = d.gw.Approve(ctx, req.ChatID, req.UserID)
	} else {
		err = d.gw.Decline(ctx, req.ChatID, req.UserID)
	}
	dec.PlatformAcknowledged = err == nil
	if err != nil {
		log.Warnw("admission_platform_answer_failed", "approved", dec.Approved, "err", err)
	} else {
		log.Infow("admission_platform_acknowledged", "approved", dec.Approved)
	}
	return dec, nil
}

func (d *Decider) decide(ctx context.Context, req Request) (Decision, error) {
	c, err := d.store.FindCommunityByChatID(ctx, req.ChatID)
	if errors.Is(err, store.ErrNotFound) {
		return Decision{Reason: ReasonUnknownCommunity}, nil
	}
	if err != nil {
		return Decision{}, apperr.Store("find community by chat", err)
	}

	m, err := d.store.FindMember(ctx, req.UserID, c.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Decision{}, apperr.Store("find member", err)
	}
	now := d.now()

	switch {
	case m.HasLiveSubscription(now):
		return Decision{Approved: true, Reason: ReasonActiveSubscription, Member: m}, nil

	case m != nil && m.SubscriptionStatus == types.SubscriptionStatusExpired:
		next := m.Clone()
		next.IsActive = true
		next.JoinedAt = &now
		next.LeftAt = nil
		saved, err := d.members.Commit(ctx, m, membership.Transition{
			Member:  next,
			Intents: []membership.Intent{membership.IntentAdmit},
			Changed: true,
		}, types.MemberChangeReasonAdmission)
		if err != nil {
			return Decision{}, err
		}
		return Decision{Approved: true, Reason: ReasonGraceReentry, Member: saved}, nil

	// an active row past its end has not been swept yet; a newer payment still admits
	case m == nil || m.SubscriptionStatus == types.SubscriptionStatusInactive ||
		m.SubscriptionStatus == types.SubscriptionStatusActive:
		grant, err := d.members.GrantFor(ctx, store.PaymentLookup{UserID: req.UserID, Username: req.Username, CommunityID: c.ID})
		if err != nil {
			return Decision{}, err
		}
		if grant == nil || !grant.Window.Live(now) {
			break
		}
		tr := membership.Apply(m, membership.Event{
			Kind:        membership.EventJoin,
			UserID:      req.UserID,
			CommunityID: c.ID,
			Username:    req.Username,
			FirstName:   req.FirstName,
		}, grant, now)
		saved, err := d.members.Commit(ctx, m, tr, types.MemberChangeReasonAdmission)
		if err != nil {
			return Decision{}, err
		}
		return Decision{Approved: true, Reason: ReasonPaymentFound, Member: saved}, nil
	}
	return Decision{Reason: ReasonNoSubscription, Member: m}, nil
}
