package models

import (
	"time"

	"gorm.io/datatypes"
)

type WebhookEventLogStatus string

const (
	WebhookEventLogStatusReceived     WebhookEventLogStatus = "received"
	WebhookEventLogStatusHandled      WebhookEventLogStatus = "handled"
	WebhookEventLogStatusIgnored      WebhookEventLogStatus = "ignored"
	WebhookEventLogStatusHandleFailed WebhookEventLogStatus = "handle_failed"
)

// WebhookEventLog is the audit row written for every inbound update before dispatch.
type WebhookEventLog struct {
	ID        string                `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UpdateID  int64                 `gorm:"column:update_id;index" json:"update_id"`
	Kind      string                `gorm:"column:kind;type:varchar(64);not null" json:"kind"`
	ChatID    *int64                `gorm:"column:chat_id" json:"chat_id"`
	UserID    *int64                `gorm:"column:user_id;index" json:"user_id"`
	TraceID   string                `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	Data      datatypes.JSON        `gorm:"column:data;type:jsonb" json:"data"`
	Status    WebhookEventLogStatus `gorm:"column:status;type:varchar(64);not null" json:"status"`
	Handled   bool                  `gorm:"column:handled;not null;default:false" json:"handled"`
	Result    *datatypes.JSON       `gorm:"column:result;type:jsonb" json:"result"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

func (WebhookEventLog) TableName() string { return "webhook_event_log" }
