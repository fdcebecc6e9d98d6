package models

import (
	"time"

	"github.com/fatflowers/tollgate/pkg/types"
)

// Member is the subscription and presence record of one user in one community.
// IsActive tracks chat presence and is independent of SubscriptionStatus.
type Member struct {
	ID                 string                   `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ExternalUserID     int64                    `gorm:"column:external_user_id;not null;uniqueIndex:unique_member_user_community,priority:1" json:"external_user_id"`
	CommunityID        string                   `gorm:"column:community_id;type:uuid;not null;uniqueIndex:unique_member_user_community,priority:2;index" json:"community_id"`
	Username           string                   `gorm:"column:username;type:varchar(64)" json:"username"`
	FirstName          string                   `gorm:"column:first_name;type:varchar(255)" json:"first_name"`
	IsActive           bool                     `gorm:"column:is_active;not null;default:false" json:"is_active"`
	SubscriptionStatus types.SubscriptionStatus `gorm:"column:subscription_status;type:varchar(32);not null;index" json:"subscription_status"`
	SubscriptionPlanID *string                  `gorm:"column:subscription_plan_id;type:uuid" json:"subscription_plan_id"`
	SubscriptionStart  *time.Time               `gorm:"column:subscription_start" json:"subscription_start"`
	SubscriptionEnd    *time.Time               `gorm:"column:subscription_end;index" json:"subscription_end"`
	LastPaymentID      *string                  `gorm:"column:last_payment_id;type:uuid" json:"last_payment_id"`
	JoinedAt           *time.Time               `gorm:"column:joined_at" json:"joined_at"`
	LeftAt             *time.Time               `gorm:"column:left_at" json:"left_at"`
	CreatedAt          time.Time                `json:"created_at"`
	UpdatedAt          time.Time                `json:"updated_at"`
}

func (Member) TableName() string {
	return "member"
}

// HasLiveSubscription reports an active status with an end strictly after now.
func (m *Member) HasLiveSubscription(now time.Time) bool {
	return m != nil &&
		m.SubscriptionStatus == types.SubscriptionStatusActive &&
		m.SubscriptionEnd != nil &&
		m.SubscriptionEnd.After(now)
}

// Clone returns a deep copy so callers can diff before/after snapshots.
func (m *Member) Clone() *Member {
	if m == nil {
		return nil
	}
	cp := *m
	cp.SubscriptionPlanID = clonePtr(m.SubscriptionPlanID)
	cp.SubscriptionStart = clonePtr(m.SubscriptionStart)
	cp.SubscriptionEnd = clonePtr(m.SubscriptionEnd)
	cp.LastPaymentID = clonePtr(m.LastPaymentID)
	cp.JoinedAt = clonePtr(m.JoinedAt)
	cp.LeftAt = clonePtr(m.LeftAt)
	return &cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
