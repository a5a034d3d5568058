package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketcore/pkg/enums"
)

// Shipment tracks delivery of one sub-order.
type Shipment struct {
	ID         uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	SubOrderID uuid.UUID            `gorm:"column:sub_order_id;type:uuid;not null;index"`
	Status     enums.ShipmentStatus `gorm:"column:status;type:text;not null"`
	Events     []ShipmentEvent      `gorm:"foreignKey:ShipmentID"`
	CreatedAt  time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Shipment) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
