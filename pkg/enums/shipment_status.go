package enums

import (
	"fmt"
	"strings"
)

// ShipmentStatus tracks fulfillment progress of a single shipment.
type ShipmentStatus string

const (
	ShipmentStatusPending   ShipmentStatus = "pending"
	ShipmentStatusPacking   ShipmentStatus = "packing"
	ShipmentStatusInTransit ShipmentStatus = "in_transit"
	ShipmentStatusDelivered ShipmentStatus = "delivered"
	ShipmentStatusCanceled  ShipmentStatus = "canceled"
	ShipmentStatusReturned  ShipmentStatus = "returned"
)

var validShipmentStatuses = []ShipmentStatus{
	ShipmentStatusPending,
	ShipmentStatusPacking,
	ShipmentStatusInTransit,
	ShipmentStatusDelivered,
	ShipmentStatusCanceled,
	ShipmentStatusReturned,
}

// String implements fmt.Stringer.
func (s ShipmentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ShipmentStatus.
func (s ShipmentStatus) IsValid() bool {
	for _, candidate := range validShipmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsMoving reports whether the shipment has left the seller.
func (s ShipmentStatus) IsMoving() bool {
	return s == ShipmentStatusInTransit || s == ShipmentStatusDelivered
}

// ParseShipmentStatus converts raw input into a ShipmentStatus. Both
// "in_transit" and "IN_TRANSIT" are accepted.
func ParseShipmentStatus(value string) (ShipmentStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validShipmentStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shipment status %q", value)
}
