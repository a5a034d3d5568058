package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/marketcore/pkg/db/models"
	"github.com/angelmondragon/marketcore/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("SubOrders", "Payments").Create(order).Error
}

func (r *repository) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

func (r *repository) TransitionOrderStatus(ctx context.Context, orderID uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) CreateSubOrder(ctx context.Context, sub *models.SubOrder) error {
	return r.db.WithContext(ctx).Omit("Items", "Shipments").Create(sub).Error
}

func (r *repository) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.hydrated(ctx).Where("id = ?", orderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.hydrated(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindUserOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.hydrated(ctx).
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindUserOrderForUpdate(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.hydrated(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListUserOrders(ctx context.Context, userID uuid.UUID, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.hydrated(ctx).
		Where("user_id = ?", userID).
		Order("placed_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) hydrated(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("SubOrders", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC").Order("id ASC") }).
		Preload("SubOrders.Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC").Order("id ASC") }).
		Preload("SubOrders.Shipments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC").Order("id ASC") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC").Order("id ASC") })
}

func (r *repository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) CancelPendingPayments(ctx context.Context, orderID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("order_id = ? AND status = ?", orderID, enums.PaymentStatusPending).
		Update("status", enums.PaymentStatusCanceled)
	return res.RowsAffected, res.Error
}

func (r *repository) ListPayments(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repository) CreateShipment(ctx context.Context, shipment *models.Shipment) error {
	return r.db.WithContext(ctx).Omit("Events").Create(shipment).Error
}

func (r *repository) FindShipment(ctx context.Context, shipmentID uuid.UUID) (*models.Shipment, error) {
	var shipment models.Shipment
	if err := r.db.WithContext(ctx).Where("id = ?", shipmentID).First(&shipment).Error; err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (r *repository) FindSubOrder(ctx context.Context, subOrderID uuid.UUID) (*models.SubOrder, error) {
	var sub models.SubOrder
	if err := r.db.WithContext(ctx).Where("id = ?", subOrderID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) TransitionShipmentStatus(ctx context.Context, shipmentID uuid.UUID, from, to enums.ShipmentStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("id = ? AND status = ?", shipmentID, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) CreateShipmentEvent(ctx context.Context, event *models.ShipmentEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) ListShipmentEvents(ctx context.Context, shipmentID uuid.UUID) ([]models.ShipmentEvent, error) {
	var events []models.ShipmentEvent
	err := r.db.WithContext(ctx).
		Where("shipment_id = ?", shipmentID).
		Order("occurred_at ASC").
		Order("id ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
