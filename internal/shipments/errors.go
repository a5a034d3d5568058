package shipments

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/marketcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketcore/pkg/errors"
)

// ShipmentNotFound is returned for unknown shipment ids.
func ShipmentNotFound(shipmentID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "shipment not found").
		WithDetails(map[string]any{"shipment_id": shipmentID.String()})
}

// InvalidTransition names the refused current -> next pair.
func InvalidTransition(current, next enums.ShipmentStatus) error {
	return pkgerrors.Newf(pkgerrors.CodeStateConflict, "invalid transition %s -> %s", current, next).
		WithDetails(map[string]any{"current": current.String(), "next": next.String()})
}
