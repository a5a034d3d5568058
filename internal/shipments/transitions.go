package shipments

import (
	"strings"

	"github.com/angelmondragon/marketcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketcore/pkg/errors"
)

var allowedNext = map[enums.ShipmentStatus][]enums.ShipmentStatus{
	enums.ShipmentStatusPending:   {enums.ShipmentStatusPacking, enums.ShipmentStatusCanceled},
	enums.ShipmentStatusPacking:   {enums.ShipmentStatusInTransit, enums.ShipmentStatusCanceled},
	enums.ShipmentStatusInTransit: {enums.ShipmentStatusDelivered, enums.ShipmentStatusReturned, enums.ShipmentStatusCanceled},
}

// CanTransition reports whether next is an allowed forward step from
// current. Delivered, canceled and returned are terminal.
func CanTransition(current, next enums.ShipmentStatus) bool {
	for _, candidate := range allowedNext[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// AllowedNext lists the statuses reachable from current.
func AllowedNext(current enums.ShipmentStatus) []enums.ShipmentStatus {
	out := make([]enums.ShipmentStatus, len(allowedNext[current]))
	copy(out, allowedNext[current])
	return out
}

// IsTerminal reports whether no forward transition leaves status.
func IsTerminal(status enums.ShipmentStatus) bool {
	return status.IsValid() && len(allowedNext[status]) == 0
}

// ParseStatus converts caller input into a shipment status.
func ParseStatus(raw string) (enums.ShipmentStatus, error) {
	status, err := enums.ParseShipmentStatus(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipment status").
			WithDetails(map[string]any{"status": strings.TrimSpace(raw)})
	}
	return status, nil
}
