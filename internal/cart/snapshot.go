package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SnapshotLine is a cart item resolved down to its seller, carrying the
// price frozen when the item was added.
type SnapshotLine struct {
	CartItemID    uuid.UUID
	VariantID     uuid.UUID
	ProductID     uuid.UUID
	SellerID      uuid.UUID
	Qty           int
	PriceSnapshot decimal.Decimal
}

// Snapshot is the read-only view checkout consumes. CartID is uuid.Nil when
// the user never had a cart.
type Snapshot struct {
	CartID uuid.UUID
	UserID uuid.UUID
	Lines  []SnapshotLine
}

func (s *Snapshot) IsEmpty() bool {
	return s == nil || len(s.Lines) == 0
}
