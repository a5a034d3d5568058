package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketcore/pkg/db/models"
	"github.com/angelmondragon/marketcore/pkg/enums"
)

// Repository defines persistence for the order graph: orders, sub-orders,
// items, payments, shipments and shipment events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrder(ctx context.Context, order *models.Order) error
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	// TransitionOrderStatus applies updates only while the order is still in
	// status from, reporting whether a row changed.
	TransitionOrderStatus(ctx context.Context, orderID uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error)
	CreateSubOrder(ctx context.Context, sub *models.SubOrder) error
	CreateOrderItems(ctx context.Context, items []models.OrderItem) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	// FindOrderForUpdate loads the order graph holding a row lock on the
	// order until the surrounding transaction ends.
	FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindUserOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	// FindUserOrderForUpdate is FindUserOrder holding the order row lock.
	FindUserOrderForUpdate(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	ListUserOrders(ctx context.Context, userID uuid.UUID, limit int) ([]models.Order, error)

	CreatePayment(ctx context.Context, payment *models.Payment) error
	CancelPendingPayments(ctx context.Context, orderID uuid.UUID) (int64, error)
	ListPayments(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error)

	CreateShipment(ctx context.Context, shipment *models.Shipment) error
	FindShipment(ctx context.Context, shipmentID uuid.UUID) (*models.Shipment, error)
	FindSubOrder(ctx context.Context, subOrderID uuid.UUID) (*models.SubOrder, error)
	// TransitionShipmentStatus moves a shipment to status to only while it is
	// still in status from, reporting whether a row changed.
	TransitionShipmentStatus(ctx context.Context, shipmentID uuid.UUID, from, to enums.ShipmentStatus) (bool, error)
	CreateShipmentEvent(ctx context.Context, event *models.ShipmentEvent) error
	ListShipmentEvents(ctx context.Context, shipmentID uuid.UUID) ([]models.ShipmentEvent, error)
}
