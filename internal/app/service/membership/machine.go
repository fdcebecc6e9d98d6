package membership

import (
	"time"

	"github.com/samber/lo"

	"github.com/fatflowers/tollgate/internal/app/service/subscription"
	"github.com/fatflowers/tollgate/internal/models"
	"github.com/fatflowers/tollgate/pkg/types"
)

type EventKind string

const (
	EventJoin   EventKind = "join"
	EventLeave  EventKind = "leave"
	EventExpire EventKind = "expire"
	EventKick   EventKind = "kick"
	EventRenew  EventKind = "renew"
)

// Event is one input of the member state machine.
type Event struct {
	Kind        EventKind
	UserID      int64
	CommunityID string
	Username    string
	FirstName   string
	// Kicked marks a leave caused by a ban in the chat.
	Kicked bool
	// Status is the terminal status of a kick: removed or expired.
	Status types.SubscriptionStatus
	// AutoEvict enables the evict intent on expiry.
	AutoEvict bool
}

// Grant is a paid window derived from a payment.
type Grant struct {
	PlanID    string
	PaymentID string
	Window    subscription.Window
}

// Intent is a side effect the caller must carry out after a transition.
type Intent string

const (
	IntentAdmit            Intent = "admit"
	IntentEvict            Intent = "evict"
	IntentMarkExpired      Intent = "mark_expired"
	IntentInvalidateInvite Intent = "invalidate_invite"
)

type Transition struct {
	// Member is the next state; nil when the event does not apply to an absent record.
	Member  *models.Member
	Intents []Intent
	Changed bool
}

func (t Transition) Has(i Intent) bool {
	return lo.Contains(t.Intents, i)
}

// Apply computes the next member state. It is pure: current is never modified.
func Apply(current *models.Member, ev Event, grant *Grant, now time.Time) Transition {
	if current == nil && ev.Kind != EventJoin && ev.Kind != EventRenew {
		return Transition{}
	}

	next := current.Clone()
	if next == nil {
		next = &models.Member{
			ExternalUserID:     ev.UserID,
			CommunityID:        ev.CommunityID,
			SubscriptionStatus: types.SubscriptionStatusInactive,
		}
	}
	if ev.Username != "" {
		next.Username = ev.Username
	}
	if ev.FirstName != "" {
		next.FirstName = ev.FirstName
	}

	var intents []Intent
	switch ev.Kind {
	case EventJoin:
		if !next.IsActive || next.JoinedAt == nil {
			next.JoinedAt = lo.ToPtr(now)
		}
		next.IsActive = true
		next.LeftAt = nil
		switch {
		case current.HasLiveSubscription(now):
		case current != nil && current.SubscriptionStatus == types.SubscriptionStatusRemoved && !grant.after(current):
			// a removal is only lifted by a payment made after it
		case grant.live(now):
			activate(next, grant, true)
			intents = append(intents, IntentAdmit)
		default:
			next.SubscriptionStatus = types.SubscriptionStatusInactive
		}

	case EventLeave:
		next.IsActive = false
		next.LeftAt = lo.ToPtr(now)
		if ev.Kicked {
			next.SubscriptionStatus = types.SubscriptionStatusRemoved
			intents = append(intents, IntentInvalidateInvite)
		}

	case EventExpire:
		next.SubscriptionStatus = types.SubscriptionStatusExpired
		intents = append(intents, IntentMarkExpired)
		if ev.AutoEvict && current.IsActive {
			next.IsActive = false
			next.LeftAt = lo.ToPtr(now)
			intents = append(intents, IntentEvict, IntentInvalidateInvite)
		}

	case EventKick:
		status := ev.Status
		if status != types.SubscriptionStatusExpired {
			status = types.SubscriptionStatusRemoved
		}
		next.SubscriptionStatus = status
		if next.IsActive {
			next.LeftAt = lo.ToPtr(now)
		}
		next.IsActive = false
		intents = append(intents, IntentEvict, IntentInvalidateInvite)

	case EventRenew:
		if grant == nil {
			return Transition{Member: next, Changed: current == nil}
		}
		activate(next, grant, !current.HasLiveSubscription(now))
		intents = append(intents, IntentAdmit)

	default:
		return Transition{Member: current.Clone()}
	}

	return Transition{Member: next, Intents: intents, Changed: changed(current, next)}
}

func (g *Grant) live(now time.Time) bool {
	return g != nil && g.Window.Live(now)
}

// after reports whether g comes from a payment other than the last one applied to m.
func (g *Grant) after(m *models.Member) bool {
	if g == nil || g.PaymentID == "" {
		return false
	}
	return m.LastPaymentID == nil || *m.LastPaymentID != g.PaymentID
}

// activate writes the grant onto m. A renewal of a running window keeps its start.
func activate(m *models.Member, g *Grant, restart bool) {
	m.SubscriptionStatus = types.SubscriptionStatusActive
	if restart || m.SubscriptionStart == nil {
		m.SubscriptionStart = lo.ToPtr(g.Window.Start)
	}
	m.SubscriptionEnd = lo.ToPtr(g.Window.End)
	if g.PlanID != "" {
		m.SubscriptionPlanID = lo.ToPtr(g.PlanID)
	}
	if g.PaymentID != "" {
		m.LastPaymentID = lo.ToPtr(g.PaymentID)
	}
}

func changed(before, after *models.Member) bool {
	if before == nil {
		return after != nil
	}
	return before.Username != after.Username ||
		before.FirstName != after.FirstName ||
		before.IsActive != after.IsActive ||
		before.SubscriptionStatus != after.SubscriptionStatus ||
		!eqPtr(before.SubscriptionPlanID, after.SubscriptionPlanID) ||
		!eqTime(before.SubscriptionStart, after.SubscriptionStart) ||
		!eqTime(before.SubscriptionEnd, after.SubscriptionEnd) ||
		!eqPtr(before.LastPaymentID, after.LastPaymentID) ||
		!eqTime(before.JoinedAt, after.JoinedAt) ||
		!eqTime(before.LeftAt, after.LeftAt)
}

func eqPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
