package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Cart is a user's single active cart. The row survives checkout; only its
// items are cleared once payment is confirmed.
type Cart struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID  `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_carts_user_id"`
	Items     []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Cart) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
