package helpers

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketcore/internal/cart"
	"github.com/angelmondragon/marketcore/internal/pricing"
	"github.com/angelmondragon/marketcore/pkg/money"
)

// SellerGroup holds the cart lines owed by one seller.
type SellerGroup struct {
	SellerID uuid.UUID
	Lines    []cart.SnapshotLine
}

// GroupLinesBySeller groups lines by seller, keeping sellers in the order
// they first appear and lines in cart order within each seller.
func GroupLinesBySeller(lines []cart.SnapshotLine) []SellerGroup {
	index := make(map[uuid.UUID]int, len(lines))
	groups := make([]SellerGroup, 0)
	for _, line := range lines {
		i, ok := index[line.SellerID]
		if !ok {
			i = len(groups)
			index[line.SellerID] = i
			groups = append(groups, SellerGroup{SellerID: line.SellerID})
		}
		groups[i].Lines = append(groups[i].Lines, line)
	}
	return groups
}

// Subtotal is round2(sum(price x qty)) over the group's lines.
func (g SellerGroup) Subtotal() decimal.Decimal {
	totals := make([]decimal.Decimal, 0, len(g.Lines))
	for _, line := range g.Lines {
		totals = append(totals, money.LineTotal(line.PriceSnapshot, line.Qty))
	}
	return money.Sum(totals...)
}

// ShippingLines projects the group for a shipping policy.
func (g SellerGroup) ShippingLines() []pricing.Line {
	out := make([]pricing.Line, 0, len(g.Lines))
	for _, line := range g.Lines {
		out = append(out, pricing.Line{VariantID: line.VariantID, Qty: line.Qty})
	}
	return out
}
