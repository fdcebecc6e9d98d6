package models

import "time"

// InviteLink is an invite link issued for a community, optionally bound to one member/payment.
type InviteLink struct {
	ID           string     `gorm:"column:id;type:uuid;primary_key" json:"id"`
	CommunityID  string     `gorm:"column:community_id;type:uuid;not null;index" json:"community_id"`
	MemberUserID *int64     `gorm:"column:member_user_id;index" json:"member_user_id"`
	PaymentID    *string    `gorm:"column:payment_id;type:uuid" json:"payment_id"`
	Link         string     `gorm:"column:link;type:varchar(255);not null" json:"link"`
	Name         string     `gorm:"column:name;type:varchar(64)" json:"name"`
	ExpireAt     int64      `gorm:"column:expire_at;not null" json:"expire_at"`
	MemberLimit  *int       `gorm:"column:member_limit" json:"member_limit"`
	RevokedAt    *time.Time `gorm:"column:revoked_at" json:"revoked_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (InviteLink) TableName() string {
	return "invite_link"
}
