package models

import (
	"time"

	"github.com/fatflowers/tollgate/pkg/types"
)

// BroadcastJob is one fan-out request; counters are written once when it finishes.
type BroadcastJob struct {
	ID         string                    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	EntityID   string                    `gorm:"column:entity_id;type:uuid;not null;index" json:"entity_id"`
	EntityType types.BroadcastEntityType `gorm:"column:entity_type;type:varchar(32);not null" json:"entity_type"`
	Filter     types.BroadcastFilter     `gorm:"column:filter;type:varchar(32);not null" json:"filter"`
	PlanID     *string                   `gorm:"column:plan_id;type:uuid" json:"plan_id"`
	Message    string                    `gorm:"column:message;type:text;not null" json:"message"`
	ImageURL   *string                   `gorm:"column:image_url;type:text" json:"image_url"`
	ButtonText *string                   `gorm:"column:button_text;type:varchar(64)" json:"button_text"`
	ButtonURL  *string                   `gorm:"column:button_url;type:text" json:"button_url"`
	Status     types.BroadcastStatus     `gorm:"column:status;type:varchar(32);not null" json:"status"`
	Sent       int                       `gorm:"column:sent;not null;default:0" json:"sent"`
	Failed     int                       `gorm:"column:failed;not null;default:0" json:"failed"`
	Total      int                       `gorm:"column:total;not null;default:0" json:"total"`
	Error      *string                   `gorm:"column:error;type:text" json:"error"`
	StartedAt  time.Time                 `gorm:"column:started_at;not null" json:"started_at"`
	FinishedAt *time.Time                `gorm:"column:finished_at" json:"finished_at"`
	CreatedAt  time.Time                 `json:"created_at"`
	UpdatedAt  time.Time                 `json:"updated_at"`
}

func (BroadcastJob) TableName() string {
	return "broadcast_job"
}
