package pricing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketcore/pkg/money"
)

// Line is the shipping-relevant view of a cart line.
type Line struct {
	VariantID uuid.UUID
	Qty       int
}

// ShippingPolicy computes the shipping fee of one seller's sub-order.
type ShippingPolicy interface {
	Fee(sellerID uuid.UUID, lines []Line) decimal.Decimal
}

// DefaultFlatFee is charged per sub-order when nothing is configured.
var DefaultFlatFee = decimal.NewFromInt(40)

// FlatShipping charges the same fee for every sub-order. It is a placeholder
// until per-seller rates exist.
type FlatShipping struct {
	fee decimal.Decimal
}

func NewFlatShipping(fee decimal.Decimal) FlatShipping {
	if fee.IsNegative() {
		fee = decimal.Zero
	}
	return FlatShipping{fee: money.Round2(fee)}
}

func (f FlatShipping) Fee(uuid.UUID, []Line) decimal.Decimal {
	return f.fee
}
