package orders

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketcore/pkg/db/models"
	"github.com/angelmondragon/marketcore/pkg/money"
)

// OrderView is an order with its computed pay total.
type OrderView struct {
	Order    *models.Order   `json:"order"`
	PayTotal decimal.Decimal `json:"payTotal"`
}

// NewOrderView derives the pay total from the order's frozen totals.
func NewOrderView(order *models.Order) *OrderView {
	return &OrderView{Order: order, PayTotal: PayTotal(order)}
}

// PayTotal is round2(itemsTotal - discountTotal + shippingTotal).
func PayTotal(order *models.Order) decimal.Decimal {
	return money.PayTotal(order.ItemsTotal, order.DiscountTotal, order.ShippingTotal)
}
