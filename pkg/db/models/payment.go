package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketcore/pkg/enums"
)

// Payment is one payment attempt. Rows are never deleted.
type Payment struct {
	ID        uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID             `gorm:"column:order_id;type:uuid;not null;index"`
	Provider  enums.PaymentProvider `gorm:"column:provider;type:text;not null"`
	Status    enums.PaymentStatus   `gorm:"column:status;type:text;not null"`
	Amount    decimal.Decimal       `gorm:"column:amount;type:numeric(12,2);not null"`
	IntentID  *string               `gorm:"column:intent_id;uniqueIndex:ux_payments_intent_id"`
	CreatedAt time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
