package payments

import (
	pkgerrors "github.com/angelmondragon/marketcore/pkg/errors"
)

// IntentAlreadyUsed is returned when a provider intent already settled a
// different order.
func IntentAlreadyUsed(intentID, ownerOrderID string) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "payment intent already used").
		WithDetails(map[string]any{"intent_id": intentID, "order_id": ownerOrderID})
}
