package models

// All lists every table owned or read by the order core, in dependency order.
func All() []any {
	return []any{
		&Product{},
		&ProductVariant{},
		&Cart{},
		&CartItem{},
		&Order{},
		&SubOrder{},
		&OrderItem{},
		&Payment{},
		&Shipment{},
		&ShipmentEvent{},
	}
}
