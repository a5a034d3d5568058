package checkout

import (
	pkgerrors "github.com/angelmondragon/marketcore/pkg/errors"
)

// EmptyCart is returned when the user has nothing to check out.
func EmptyCart() error {
	return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
}
