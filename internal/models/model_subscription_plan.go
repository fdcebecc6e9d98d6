package models

import (
	"time"

	"github.com/fatflowers/tollgate/pkg/types"
	"github.com/shopspring/decimal"
)

// SubscriptionPlan is a priced access plan of one community.
type SubscriptionPlan struct {
	ID          string             `gorm:"column:id;type:uuid;primary_key" json:"id"`
	CommunityID string             `gorm:"column:community_id;type:uuid;not null;index" json:"community_id"`
	Name        string             `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Interval    types.PlanInterval `gorm:"column:interval;type:varchar(32);not null" json:"interval"`
	Price       decimal.Decimal    `gorm:"column:price;type:numeric(18,2);not null" json:"price"`
	Currency    string             `gorm:"column:currency;type:varchar(16);not null" json:"currency"`
	IsActive    bool               `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func (SubscriptionPlan) TableName() string {
	return "subscription_plan"
}
