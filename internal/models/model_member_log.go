package models

import (
	"time"

	"github.com/fatflowers/tollgate/pkg/types"
	"gorm.io/datatypes"
)

// MemberLog records member state transitions.
// Use case: troubleshooting.
type MemberLog struct {
	ID          string                   `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID      int64                    `gorm:"column:user_id;not null;index:idx_member_log_user_community,priority:1"`
	CommunityID string                   `gorm:"column:community_id;type:uuid;not null;index:idx_member_log_user_community,priority:2"`
	Reason      types.MemberChangeReason `gorm:"column:reason;type:varchar(64);not null"`
	// Before stores the member row before the change; null for new members.
	Before datatypes.JSONType[*Member] `gorm:"column:before;type:jsonb;default:'null'"`
	After  datatypes.JSONType[*Member] `gorm:"column:after;type:jsonb;default:'null'"`
	// Intents lists the side effects emitted by the transition.
	Intents   datatypes.JSONType[[]string] `gorm:"column:intents;type:jsonb;default:'[]'"`
	CreatedAt time.Time
}

func (MemberLog) TableName() string {
	return "member_log"
}
