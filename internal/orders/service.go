package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketcore/internal/inventory"
	"github.com/angelmondragon/marketcore/internal/notifications"
	"github.com/angelmondragon/marketcore/pkg/db"
	"github.com/angelmondragon/marketcore/pkg/db/models"
	"github.com/angelmondragon/marketcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketcore/pkg/errors"
	"github.com/angelmondragon/marketcore/pkg/logger"
	"github.com/angelmondragon/marketcore/pkg/metrics"
	"github.com/angelmondragon/marketcore/pkg/pagination"
)

// Restocker returns reserved units to variant stock.
type Restocker interface {
	Restock(ctx context.Context, tx *gorm.DB, requests []inventory.Request) error
}

// RefundRecorder is invoked inside the cancellation transaction for orders
// whose payment already succeeded.
type RefundRecorder interface {
	RecordRefund(ctx context.Context, tx *gorm.DB, order *models.Order) error
}

// NoRefunds leaves refund bookkeeping to a later ledger.
type NoRefunds struct{}

func (NoRefunds) RecordRefund(context.Context, *gorm.DB, *models.Order) error { return nil }

// CancelInput identifies the order to cancel and who is asking.
type CancelInput struct {
	UserID  uuid.UUID
	OrderID uuid.UUID
	Reason  string
}

// ServiceParams wires an orders Service.
type ServiceParams struct {
	Repo         Repository
	Tx           db.TxRunner
	Stock        Restocker
	Refunds      RefundRecorder
	Notifier     notifications.Dispatcher
	Logger       *logger.Logger
	Metrics      *metrics.OrderMetrics
	DefaultLimit int
}

// Service serves order reads and cancellation.
type Service struct {
	repo         Repository
	tx           db.TxRunner
	stock        Restocker
	refunds      RefundRecorder
	notifier     notifications.Dispatcher
	logg         *logger.Logger
	metrics      *metrics.OrderMetrics
	defaultLimit int
}

// NewService builds an orders service with the required dependencies.
func NewService(p ServiceParams) (*Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Stock == nil {
		return nil, fmt.Errorf("stock restocker required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.Refunds == nil {
		p.Refunds = NoRefunds{}
	}
	if p.Notifier == nil {
		p.Notifier = notifications.Noop{}
	}
	return &Service{
		repo:         p.Repo,
		tx:           p.Tx,
		stock:        p.Stock,
		refunds:      p.Refunds,
		notifier:     p.Notifier,
		logg:         p.Logger,
		metrics:      p.Metrics,
		defaultLimit: p.DefaultLimit,
	}, nil
}

// Get returns the user's order with its pay total.
func (s *Service) Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderView, error) {
	order, err := s.repo.FindUserOrder(ctx, userID, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, OrderNotFound(orderID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return NewOrderView(order), nil
}

// List returns the user's most recent orders, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID, limit int) ([]*OrderView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	rows, err := s.repo.ListUserOrders(ctx, userID, pagination.NormalizeLimitWithDefault(limit, s.defaultLimit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	views := make([]*OrderView, 0, len(rows))
	for i := range rows {
		views = append(views, NewOrderView(&rows[i]))
	}
	return views, nil
}

// Cancel restocks every item and moves the order to canceled. Orders that
// are already canceled, fulfilled or refunded, or that have a shipment in
// transit or delivered, cannot be canceled.
func (s *Service) Cancel(ctx context.Context, input CancelInput) (order *models.Order, err error) {
	started := time.Now()
	defer func() { s.metrics.ObserveOperation("cancel", started, err) }()

	ctx = s.logg.WithFields(ctx, map[string]any{
		"user_id":  input.UserID.String(),
		"order_id": input.OrderID.String(),
	})

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := repo.FindUserOrderForUpdate(ctx, input.UserID, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return OrderNotFound(input.OrderID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if current.Status.BlocksCancellation() {
			return InvalidState(current.Status)
		}

		var restock []inventory.Request
		for _, sub := range current.SubOrders {
			for _, shipment := range sub.Shipments {
				if shipment.Status.IsMoving() {
					return ShipmentAlreadyMoving(shipment.ID, shipment.Status)
				}
			}
			for _, item := range sub.Items {
				restock = append(restock, inventory.Request{VariantID: item.VariantID, Qty: item.Qty})
			}
		}

		if err := s.stock.Restock(ctx, tx, restock); err != nil {
			return pkgerrors.Ensure(err, "restock order items")
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"status":      enums.OrderStatusCanceled,
			"canceled_at": now,
		}
		if reason := strings.TrimSpace(input.Reason); reason != "" {
			updates["cancel_reason"] = reason
		}
		if current.PaymentStatus == enums.PaymentStatusPending {
			updates["payment_status"] = enums.PaymentStatusCanceled
		}
		changed, err := repo.TransitionOrderStatus(ctx, current.ID, current.Status, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !changed {
			// lost a race with another writer; report what it left behind
			latest, findErr := repo.FindOrder(ctx, current.ID)
			if findErr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "reload order")
			}
			return InvalidState(latest.Status)
		}

		if _, err := repo.CancelPendingPayments(ctx, current.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel pending payments")
		}
		if err := s.cancelOpenShipments(ctx, repo, current, now); err != nil {
			return err
		}

		order, err = repo.FindOrder(ctx, current.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		if order.PaymentStatus == enums.PaymentStatusSucceeded {
			if err := s.refunds.RecordRefund(ctx, tx, order); err != nil {
				return pkgerrors.Ensure(err, "record refund")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(ctx, "order canceled")
	s.notify(ctx, notifications.NewEvent(notifications.EventOrderCanceled, order.ID, order.UserID, map[string]any{
		"reason": input.Reason,
	}))
	return order, nil
}

// cancelOpenShipments closes shipments that never left the seller, keeping
// the audit trail complete.
func (s *Service) cancelOpenShipments(ctx context.Context, repo Repository, order *models.Order, now time.Time) error {
	note := "order canceled"
	for _, sub := range order.SubOrders {
		for _, shipment := range sub.Shipments {
			if shipment.Status != enums.ShipmentStatusPending && shipment.Status != enums.ShipmentStatusPacking {
				continue
			}
			changed, err := repo.TransitionShipmentStatus(ctx, shipment.ID, shipment.Status, enums.ShipmentStatusCanceled)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel shipment")
			}
			if !changed {
				latest, err := repo.FindShipment(ctx, shipment.ID)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload shipment")
				}
				return ShipmentAlreadyMoving(shipment.ID, latest.Status)
			}
			event := &models.ShipmentEvent{
				ShipmentID: shipment.ID,
				Status:     enums.ShipmentStatusCanceled,
				Note:       &note,
				OccurredAt: now,
			}
			if err := repo.CreateShipmentEvent(ctx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append shipment event")
			}
		}
	}
	return nil
}

func (s *Service) notify(ctx context.Context, event notifications.Event) {
	if err := s.notifier.Dispatch(ctx, event); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("order notification %s not delivered: %v", event.Type, err))
		s.metrics.IncNotificationFailure(string(event.Type))
	}
}
