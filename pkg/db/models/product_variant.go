package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductVariant is the purchasable unit. Stock is only ever changed through
// a conditional decrement or a plain increment.
type ProductVariant struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index"`
	SKU       string          `gorm:"column:sku;not null"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(14,4);not null"`
	Stock     int             `gorm:"column:stock;not null;default:0;check:chk_product_variants_stock,stock >= 0"`
	Product   *Product        `gorm:"foreignKey:ProductID"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *ProductVariant) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}
