package orders

import (
	"github.com/angelmondragon/marketcore/pkg/db/models"
	"github.com/angelmondragon/marketcore/pkg/enums"
)

// CollapseSubOrder reduces the statuses of a sub-order's shipments to one,
// by priority: delivered, in transit, packing, all canceled, all returned,
// otherwise pending. An empty set is pending.
func CollapseSubOrder(statuses []enums.ShipmentStatus) enums.ShipmentStatus {
	if len(statuses) == 0 {
		return enums.ShipmentStatusPending
	}
	switch {
	case containsShipment(statuses, enums.ShipmentStatusDelivered):
		return enums.ShipmentStatusDelivered
	case containsShipment(statuses, enums.ShipmentStatusInTransit):
		return enums.ShipmentStatusInTransit
	case containsShipment(statuses, enums.ShipmentStatusPacking):
		return enums.ShipmentStatusPacking
	case allShipments(statuses, enums.ShipmentStatusCanceled):
		return enums.ShipmentStatusCanceled
	case allShipments(statuses, enums.ShipmentStatusReturned):
		return enums.ShipmentStatusReturned
	}
	return enums.ShipmentStatusPending
}

// DeriveOrderStatus maps the set of collapsed sub-order statuses to the
// order-level status. Duplicates do not matter; an empty set is fulfilling.
func DeriveOrderStatus(collapsed []enums.ShipmentStatus) enums.OrderStatus {
	set := make(map[enums.ShipmentStatus]struct{}, len(collapsed))
	for _, s := range collapsed {
		set[s] = struct{}{}
	}
	if len(set) == 0 {
		return enums.OrderStatusFulfilling
	}

	_, anyDelivered := set[enums.ShipmentStatusDelivered]
	switch {
	case anyDelivered && len(set) == 1:
		return enums.OrderStatusFulfilled
	case anyDelivered:
		return enums.OrderStatusPartiallyFulfilled
	case onlyMember(set, enums.ShipmentStatusCanceled):
		return enums.OrderStatusCanceled
	case onlyMember(set, enums.ShipmentStatusReturned):
		return enums.OrderStatusRefunded
	}
	return enums.OrderStatusFulfilling
}

// Rollup derives the order status from the shipments loaded on order.
func Rollup(order *models.Order) enums.OrderStatus {
	collapsed := make([]enums.ShipmentStatus, 0, len(order.SubOrders))
	for _, sub := range order.SubOrders {
		statuses := make([]enums.ShipmentStatus, 0, len(sub.Shipments))
		for _, shipment := range sub.Shipments {
			statuses = append(statuses, shipment.Status)
		}
		collapsed = append(collapsed, CollapseSubOrder(statuses))
	}
	return DeriveOrderStatus(collapsed)
}

func containsShipment(statuses []enums.ShipmentStatus, target enums.ShipmentStatus) bool {
	for _, s := range statuses {
		if s == target {
			return true
		}
	}
	return false
}

func allShipments(statuses []enums.ShipmentStatus, target enums.ShipmentStatus) bool {
	for _, s := range statuses {
		if s != target {
			return false
		}
	}
	return true
}

func onlyMember(set map[enums.ShipmentStatus]struct{}, target enums.ShipmentStatus) bool {
	_, ok := set[target]
	return ok && len(set) == 1
}
