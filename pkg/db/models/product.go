package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is the catalog listing a variant belongs to; only the seller
// reference is read by the order core.
type Product struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SellerID  uuid.UUID `gorm:"column:seller_id;type:uuid;not null;index"`
	Title     string    `gorm:"column:title;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
