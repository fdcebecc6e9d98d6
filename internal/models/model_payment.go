package models

import (
	"time"

	"github.com/fatflowers/tollgate/pkg/types"
	"github.com/shopspring/decimal"
)

// Payment is the outcome record produced by a payment gateway.
// Only successful payments grant subscription windows.
type Payment struct {
	ID              string                `gorm:"column:id;type:uuid;primary_key" json:"id"`
	CommunityID     string                `gorm:"column:community_id;type:uuid;not null;index:idx_payment_payer_community,priority:2" json:"community_id"`
	PlanID          string                `gorm:"column:plan_id;type:uuid;not null" json:"plan_id"`
	PayerExternalID int64                 `gorm:"column:payer_external_id;not null;index:idx_payment_payer_community,priority:1" json:"payer_external_id"`
	PayerUsername   string                `gorm:"column:payer_username;type:varchar(64);index" json:"payer_username"`
	Status          types.PaymentStatus   `gorm:"column:status;type:varchar(32);not null" json:"status"`
	Provider        types.PaymentProvider `gorm:"column:provider;type:varchar(32);not null" json:"provider"`
	// ProviderChargeID makes gateway deliveries idempotent.
	ProviderChargeID *string         `gorm:"column:provider_charge_id;type:varchar(128);uniqueIndex" json:"provider_charge_id"`
	Amount           decimal.Decimal `gorm:"column:amount;type:numeric(18,2);not null" json:"amount"`
	Currency         string          `gorm:"column:currency;type:varchar(16);not null" json:"currency"`
	// InviteLink is the personal link issued for this payment; cleared on eviction.
	InviteLink *string   `gorm:"column:invite_link;type:varchar(255)" json:"invite_link"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payment"
}

func (p *Payment) Successful() bool {
	return p != nil && p.Status == types.PaymentStatusSuccessful
}
