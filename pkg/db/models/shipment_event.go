package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketcore/pkg/enums"
)

// ShipmentEvent is an append-only audit entry written on every status change.
type ShipmentEvent struct {
	ID         uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	ShipmentID uuid.UUID            `gorm:"column:shipment_id;type:uuid;not null;index"`
	Status     enums.ShipmentStatus `gorm:"column:status;type:text;not null"`
	AddressID  *uuid.UUID           `gorm:"column:address_id;type:uuid"`
	Note       *string              `gorm:"column:note"`
	OccurredAt time.Time            `gorm:"column:occurred_at;not null"`
}

func (e *ShipmentEvent) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	return nil
}
