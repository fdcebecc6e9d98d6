package types

import "time"

// SubscriptionStatus is the lifecycle state of a member's paid access.
type SubscriptionStatus string

const (
	SubscriptionStatusInactive SubscriptionStatus = "inactive"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusExpired  SubscriptionStatus = "expired"
	SubscriptionStatusRemoved  SubscriptionStatus = "removed"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionStatusInactive, SubscriptionStatusActive, SubscriptionStatusExpired, SubscriptionStatusRemoved:
		return true
	}
	return false
}

type PlanInterval string

const (
	PlanIntervalMonthly    PlanInterval = "monthly"
	PlanIntervalQuarterly  PlanInterval = "quarterly"
	PlanIntervalHalfYearly PlanInterval = "half_yearly"
	PlanIntervalYearly     PlanInterval = "yearly"
	PlanIntervalLifetime   PlanInterval = "lifetime"
	PlanIntervalOneTime    PlanInterval = "one_time"
)

// MemberChangeReason records why a member row was written.
type MemberChangeReason string

const (
	MemberChangeReasonJoin      MemberChangeReason = "join"
	MemberChangeReasonLeave     MemberChangeReason = "leave"
	MemberChangeReasonExpire    MemberChangeReason = "expire"
	MemberChangeReasonKick      MemberChangeReason = "kick"
	MemberChangeReasonRenew     MemberChangeReason = "renew"
	MemberChangeReasonAdmission MemberChangeReason = "admission"
)

// MemberSubscriptionInfo is the public view of one membership.
type MemberSubscriptionInfo struct {
	CommunityID string             `json:"community_id"`
	Status      SubscriptionStatus `json:"status"`
	IsActive    bool               `json:"is_active"`
	PlanID      *string            `json:"plan_id"`
	ExpireAt    *time.Time         `json:"expire_at"`
}
