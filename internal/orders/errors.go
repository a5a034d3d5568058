package orders

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/marketcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketcore/pkg/errors"
)

// OrderNotFound is returned for unknown orders and for orders owned by
// someone else.
func OrderNotFound(orderID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
		WithDetails(map[string]any{"order_id": orderID.String()})
}

// InvalidState is returned when the order's status forbids the operation.
func InvalidState(status enums.OrderStatus) error {
	return pkgerrors.Newf(pkgerrors.CodeConflict, "order is %s", status).
		WithDetails(map[string]any{"status": status.String()})
}

// ShipmentAlreadyMoving is returned when cancellation meets a shipment that
// already left the seller.
func ShipmentAlreadyMoving(shipmentID uuid.UUID, status enums.ShipmentStatus) error {
	return pkgerrors.Newf(pkgerrors.CodeConflict, "shipment %s is already %s", shipmentID, status).
		WithDetails(map[string]any{"shipment_id": shipmentID.String(), "status": status.String()})
}
