package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SubOrder is the part of an order owed by one seller.
type SubOrder struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	SellerID    uuid.UUID       `gorm:"column:seller_id;type:uuid;not null;index"`
	Subtotal    decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Discount    decimal.Decimal `gorm:"column:discount;type:numeric(12,2);not null"`
	ShippingFee decimal.Decimal `gorm:"column:shipping_fee;type:numeric(12,2);not null"`
	Items       []OrderItem     `gorm:"foreignKey:SubOrderID"`
	Shipments   []Shipment      `gorm:"foreignKey:SubOrderID"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (s *SubOrder) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
