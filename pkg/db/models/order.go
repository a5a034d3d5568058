package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketcore/pkg/enums"
)

// Order is the top-level purchase record. Its totals are the re-rounded sums
// of the sub-order amounts and are frozen once checkout commits.
type Order struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID            uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	Currency          enums.Currency      `gorm:"column:currency;type:text;not null"`
	ShippingAddressID *uuid.UUID          `gorm:"column:shipping_address_id;type:uuid"`
	PromoCode         *string             `gorm:"column:promo_code"`
	ItemsTotal        decimal.Decimal     `gorm:"column:items_total;type:numeric(12,2);not null"`
	DiscountTotal     decimal.Decimal     `gorm:"column:discount_total;type:numeric(12,2);not null"`
	ShippingTotal     decimal.Decimal     `gorm:"column:shipping_total;type:numeric(12,2);not null"`
	Status            enums.OrderStatus   `gorm:"column:status;type:text;not null"`
	PaymentStatus     enums.PaymentStatus `gorm:"column:payment_status;type:text;not null"`
	PlacedAt          time.Time           `gorm:"column:placed_at;not null"`
	CanceledAt        *time.Time          `gorm:"column:canceled_at"`
	CancelReason      *string             `gorm:"column:cancel_reason"`
	SubOrders         []SubOrder          `gorm:"foreignKey:OrderID"`
	Payments          []Payment           `gorm:"foreignKey:OrderID"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}
