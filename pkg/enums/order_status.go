package enums

import "fmt"

// OrderStatus tracks the lifecycle of a marketplace order.
type OrderStatus string

const (
	OrderStatusPending            OrderStatus = "pending"
	OrderStatusPendingPayment     OrderStatus = "pending_payment"
	OrderStatusPaid               OrderStatus = "paid"
	OrderStatusFulfilling         OrderStatus = "fulfilling"
	OrderStatusPartiallyFulfilled OrderStatus = "partially_fulfilled"
	OrderStatusFulfilled          OrderStatus = "fulfilled"
	OrderStatusCanceled           OrderStatus = "canceled"
	OrderStatusRefunded           OrderStatus = "refunded"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPendingPayment,
	OrderStatusPaid,
	OrderStatusFulfilling,
	OrderStatusPartiallyFulfilled,
	OrderStatusFulfilled,
	OrderStatusCanceled,
	OrderStatusRefunded,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// BlocksCancellation reports whether the order can no longer be canceled.
func (o OrderStatus) BlocksCancellation() bool {
	switch o {
	case OrderStatusCanceled, OrderStatusFulfilled, OrderStatusRefunded:
		return true
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
