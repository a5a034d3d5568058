package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CartItem carries the unit price captured when the variant was added.
type CartItem struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CartID        uuid.UUID       `gorm:"column:cart_id;type:uuid;not null;index"`
	VariantID     uuid.UUID       `gorm:"column:variant_id;type:uuid;not null"`
	Qty           int             `gorm:"column:qty;not null"`
	PriceSnapshot decimal.Decimal `gorm:"column:price_snapshot;type:numeric(14,4);not null"`
	Variant       *ProductVariant `gorm:"foreignKey:VariantID"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *CartItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
