package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatflowers/tollgate/internal/models"
	"github.com/fatflowers/tollgate/pkg/types"
)

// ErrNotFound is returned by Find* methods when no row matches.
var ErrNotFound = errors.New("record not found")

// MemberQuery selects broadcast recipients and admin listings.
type MemberQuery struct {
	CommunityIDs []string
	Filter       types.BroadcastFilter
	// PlanID is required when Filter is BroadcastFilterPlan.
	PlanID string
	// Filters are admin listing predicates on MemberFilterFields; only GormStore evaluates them.
	Filters []*types.CommonFilter
	Limit   int
	Offset  int
}

// MemberFilterFields are the member columns admin filters may reference.
var MemberFilterFields = map[string]bool{
	"external_user_id":     true,
	"username":             true,
	"is_active":            true,
	"subscription_status":  true,
	"subscription_plan_id": true,
	"subscription_end":     true,
	"joined_at":            true,
	"created_at":           true,
}

// ErrFiltersUnsupported is returned by stores that cannot evaluate MemberQuery.Filters.
var ErrFiltersUnsupported = errors.New("member filters not supported by this store")

// Validate checks the query before it reaches a Store.
func (q MemberQuery) Validate() error {
	if !q.Filter.Valid() {
		return fmt.Errorf("unknown filter %q", q.Filter)
	}
	if q.Filter == types.BroadcastFilterPlan && q.PlanID == "" {
		return fmt.Errorf("filter %q requires plan_id", q.Filter)
	}
	for _, f := range q.Filters {
		if err := f.Validate(MemberFilterFields); err != nil {
			return err
		}
	}
	return nil
}

// PaymentLookup identifies a payer either by Telegram id or by username.
type PaymentLookup struct {
	UserID      int64
	Username    string
	CommunityID string
}

// PaymentQuery selects payments for reporting. Zero Since/Until leave the window open.
type PaymentQuery struct {
	CommunityIDs []string
	Status       types.PaymentStatus
	Since        time.Time
	Until        time.Time
}

// Store is the persistence boundary of the membership engine.
// UpsertMember must be atomic per (ExternalUserID, CommunityID).
type Store interface {
	FindMember(ctx context.Context, userID int64, communityID string) (*models.Member, error)
	UpsertMember(ctx context.Context, m *models.Member) error
	ListMembersByUser(ctx context.Context, userID int64) ([]*models.Member, error)
	ListMembers(ctx context.Context, q MemberQuery) ([]*models.Member, error)
	// ListExpiredMembers returns active members whose subscription_end is before now.
	ListExpiredMembers(ctx context.Context, now time.Time, limit int) ([]*models.Member, error)
	SaveMemberLog(ctx context.Context, log *models.MemberLog) error

	FindLatestSuccessfulPayment(ctx context.Context, q PaymentLookup) (*models.Payment, error)
	FindPayment(ctx context.Context, id string) (*models.Payment, error)
	// ListPayments returns matching payments ordered by created_at.
	ListPayments(ctx context.Context, q PaymentQuery) ([]*models.Payment, error)
	// CreatePayment inserts p unless a payment with the same provider charge id exists,
	// in which case the stored row is returned with created=false.
	CreatePayment(ctx context.Context, p *models.Payment) (stored *models.Payment, created bool, err error)
	SetPaymentInviteLink(ctx context.Context, paymentID, link string) error
	ClearPaymentInviteLinks(ctx context.Context, userID int64, communityID string) error

	FindPlan(ctx context.Context, id string) (*models.SubscriptionPlan, error)

	FindCommunity(ctx context.Context, id string) (*models.Community, error)
	FindCommunityByChatID(ctx context.Context, chatID int64) (*models.Community, error)
	FindCommunityByCustomLink(ctx context.Context, link string) (*models.Community, error)
	FindCommunityByVerificationCode(ctx context.Context, code string) (*models.Community, error)
	BindCommunityChat(ctx context.Context, communityID string, chatID int64) error
	SetCommunityInviteLink(ctx context.Context, communityID, link string, expireAt time.Time) error
	ListGroupCommunityIDs(ctx context.Context, groupID string) ([]string, error)

	SaveInviteLink(ctx context.Context, l *models.InviteLink) error
	// RevokeMemberInviteLinks marks the member's live links revoked and returns them.
	RevokeMemberInviteLinks(ctx context.Context, userID int64, communityID string, at time.Time) ([]*models.InviteLink, error)

	CreateBroadcastJob(ctx context.Context, job *models.BroadcastJob) error
	FinishBroadcastJob(ctx context.Context, job *models.BroadcastJob) error
	FindBroadcastJob(ctx context.Context, id string) (*models.BroadcastJob, error)

	CreateEventLog(ctx context.Context, log *models.WebhookEventLog) error
	FinishEventLog(ctx context.Context, log *models.WebhookEventLog) error
}

// MatchesFilter applies the broadcast filter semantics to one member.
// Both Store implementations use it so the cohorts stay identical.
func MatchesFilter(m *models.Member, q MemberQuery) bool {
	switch q.Filter {
	case types.BroadcastFilterActive:
		return m.SubscriptionStatus == types.SubscriptionStatusActive
	case types.BroadcastFilterExpired:
		return m.SubscriptionStatus == types.SubscriptionStatusExpired
	case types.BroadcastFilterPlan:
		return m.SubscriptionPlanID != nil && *m.SubscriptionPlanID == q.PlanID
	default:
		return true
	}
}
