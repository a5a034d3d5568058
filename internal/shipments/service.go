package shipments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketcore/internal/notifications"
	"github.com/angelmondragon/marketcore/internal/orders"
	"github.com/angelmondragon/marketcore/pkg/db"
	"github.com/angelmondragon/marketcore/pkg/db/models"
	"github.com/angelmondragon/marketcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketcore/pkg/errors"
	"github.com/angelmondragon/marketcore/pkg/logger"
	"github.com/angelmondragon/marketcore/pkg/metrics"
)

// UpdateOptions tunes a status update. AllowBackward skips the transition
// table, for operator corrections.
type UpdateOptions struct {
	Note          string
	AllowBackward bool
}

// UpdateResult carries the updated shipment and the order status after rollup.
type UpdateResult struct {
	Shipment    *models.Shipment
	OrderID     uuid.UUID
	OrderStatus enums.OrderStatus
}

// ServiceParams wires a shipments Service.
type ServiceParams struct {
	Tx       db.TxRunner
	Orders   orders.Repository
	Notifier notifications.Dispatcher
	Logger   *logger.Logger
	Metrics  *metrics.OrderMetrics
}

// Service drives the shipment state machine.
type Service struct {
	tx       db.TxRunner
	orders   orders.Repository
	notifier notifications.Dispatcher
	logg     *logger.Logger
	metrics  *metrics.OrderMetrics
}

// NewService builds a shipments service with the required dependencies.
func NewService(p ServiceParams) (*Service, error) {
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.Notifier == nil {
		p.Notifier = notifications.Noop{}
	}
	return &Service{
		tx:       p.Tx,
		orders:   p.Orders,
		notifier: p.Notifier,
		logg:     p.Logger,
		metrics:  p.Metrics,
	}, nil
}

// UpdateStatus moves a shipment to next, appends an audit event and rolls
// the change up into the owning order. The order row is locked for the
// duration so sibling shipments update one at a time.
func (s *Service) UpdateStatus(ctx context.Context, shipmentID uuid.UUID, next enums.ShipmentStatus, addressID *uuid.UUID, opts UpdateOptions) (result *UpdateResult, err error) {
	started := time.Now()
	defer func() { s.metrics.ObserveOperation("update_shipment", started, err) }()

	if !next.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid shipment status %q", next)
	}
	ctx = s.logg.WithField(ctx, "shipment_id", shipmentID.String())

	var previous enums.ShipmentStatus
	var orderUserID uuid.UUID
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)

		shipment, err := repo.FindShipment(ctx, shipmentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ShipmentNotFound(shipmentID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipment")
		}
		sub, err := repo.FindSubOrder(ctx, shipment.SubOrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sub-order")
		}
		order, err := repo.FindOrderForUpdate(ctx, sub.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		// re-read the status under the order lock
		target := locate(order, shipmentID)
		if target == nil {
			return ShipmentNotFound(shipmentID)
		}
		previous = target.Status
		if !opts.AllowBackward && !CanTransition(previous, next) {
			return InvalidTransition(previous, next)
		}

		changed, err := repo.TransitionShipmentStatus(ctx, shipmentID, previous, next)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update shipment")
		}
		if !changed && previous != next {
			latest, err := repo.FindShipment(ctx, shipmentID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload shipment")
			}
			return InvalidTransition(latest.Status, next)
		}
		event := &models.ShipmentEvent{
			ShipmentID: shipmentID,
			Status:     next,
			AddressID:  addressID,
			OccurredAt: time.Now().UTC(),
		}
		if note := strings.TrimSpace(opts.Note); note != "" {
			event.Note = &note
		}
		if err := repo.CreateShipmentEvent(ctx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append shipment event")
		}

		target.Status = next
		derived := orders.Rollup(order)
		if derived != order.Status {
			if err := repo.UpdateOrder(ctx, order.ID, map[string]any{"status": derived}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
			}
		}

		updated, err := repo.FindShipment(ctx, shipmentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload shipment")
		}
		orderUserID = order.UserID
		result = &UpdateResult{Shipment: updated, OrderID: order.ID, OrderStatus: derived}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncShipmentTransition(previous.String(), next.String())
	ctx = s.logg.WithOrderID(ctx, result.OrderID.String())
	s.logg.Info(ctx, fmt.Sprintf("shipment %s -> %s", previous, next))
	if dispatchErr := s.notifier.Dispatch(ctx, notifications.NewEvent(notifications.EventShipmentUpdated, result.OrderID, orderUserID, map[string]any{
		"shipment_id":  shipmentID.String(),
		"from":         previous.String(),
		"to":           next.String(),
		"order_status": result.OrderStatus.String(),
	})); dispatchErr != nil {
		s.logg.Warn(ctx, fmt.Sprintf("order notification %s not delivered: %v", notifications.EventShipmentUpdated, dispatchErr))
		s.metrics.IncNotificationFailure(string(notifications.EventShipmentUpdated))
	}
	return result, nil
}

// Events returns the shipment's audit trail, oldest first.
func (s *Service) Events(ctx context.Context, shipmentID uuid.UUID) ([]models.ShipmentEvent, error) {
	if _, err := s.orders.FindShipment(ctx, shipmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ShipmentNotFound(shipmentID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipment")
	}
	events, err := s.orders.ListShipmentEvents(ctx, shipmentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list shipment events")
	}
	return events, nil
}

func locate(order *models.Order, shipmentID uuid.UUID) *models.Shipment {
	for i := range order.SubOrders {
		for j := range order.SubOrders[i].Shipments {
			if order.SubOrders[i].Shipments[j].ID == shipmentID {
				return &order.SubOrders[i].Shipments[j]
			}
		}
	}
	return nil
}
