package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderItem is a frozen cart line. PriceSnapshot is copied from the cart
// item and never recomputed from the catalog.
type OrderItem struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SubOrderID    uuid.UUID       `gorm:"column:sub_order_id;type:uuid;not null;index"`
	VariantID     uuid.UUID       `gorm:"column:variant_id;type:uuid;not null"`
	Qty           int             `gorm:"column:qty;not null"`
	PriceSnapshot decimal.Decimal `gorm:"column:price_snapshot;type:numeric(14,4);not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
