package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketcore/internal/cart"
	"github.com/angelmondragon/marketcore/internal/notifications"
	"github.com/angelmondragon/marketcore/internal/orders"
	"github.com/angelmondragon/marketcore/pkg/db"
	"github.com/angelmondragon/marketcore/pkg/db/models"
	"github.com/angelmondragon/marketcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketcore/pkg/errors"
	"github.com/angelmondragon/marketcore/pkg/logger"
	"github.com/angelmondragon/marketcore/pkg/metrics"
)

const initialShipmentNote = "awaiting fulfillment"

// ConfirmInput identifies the order being paid and the provider's reference.
type ConfirmInput struct {
	OrderID  uuid.UUID
	Provider string
	IntentID string
}

// ServiceParams wires a payments Service.
type ServiceParams struct {
	Tx              db.TxRunner
	Orders          orders.Repository
	Carts           cart.CartRepository
	Guard           *IntentGuard
	DefaultProvider enums.PaymentProvider
	Notifier        notifications.Dispatcher
	Logger          *logger.Logger
	Metrics         *metrics.OrderMetrics
}

// Service confirms payments and exposes payment history.
type Service struct {
	tx              db.TxRunner
	orders          orders.Repository
	carts           cart.CartRepository
	guard           *IntentGuard
	defaultProvider enums.PaymentProvider
	notifier        notifications.Dispatcher
	logg            *logger.Logger
	metrics         *metrics.OrderMetrics
}

// NewService builds a payments service with the required dependencies.
func NewService(p ServiceParams) (*Service, error) {
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.DefaultProvider == "" {
		p.DefaultProvider = enums.PaymentProviderCOD
	}
	if p.Notifier == nil {
		p.Notifier = notifications.Noop{}
	}
	return &Service{
		tx:              p.Tx,
		orders:          p.Orders,
		carts:           p.Carts,
		guard:           p.Guard,
		defaultProvider: p.DefaultProvider,
		notifier:        p.Notifier,
		logg:            p.Logger,
		metrics:         p.Metrics,
	}, nil
}

// Confirm records a successful payment, clears the buyer's cart, marks the
// order paid and opens one pending shipment per sub-order. Confirming an
// order that is already paid returns it unchanged.
func (s *Service) Confirm(ctx context.Context, input ConfirmInput) (order *models.Order, err error) {
	started := time.Now()
	defer func() { s.metrics.ObserveOperation("confirm_payment", started, err) }()

	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	provider := s.defaultProvider
	if raw := strings.TrimSpace(input.Provider); raw != "" {
		provider, err = enums.ParsePaymentProvider(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment provider")
		}
	}
	intentID := strings.TrimSpace(input.IntentID)

	ctx = s.logg.WithOrderID(ctx, input.OrderID.String())

	claimed := false
	if intentID != "" {
		claim, guardErr := s.guard.Claim(ctx, intentID, input.OrderID)
		switch {
		case guardErr != nil:
			s.logg.Warn(ctx, fmt.Sprintf("payment intent guard unavailable: %v", guardErr))
		case !claim.Granted:
			return nil, IntentAlreadyUsed(intentID, claim.Owner)
		default:
			claimed = claim.Fresh
		}
	}

	alreadyPaid := false
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)

		current, err := repo.FindOrderForUpdate(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return orders.OrderNotFound(input.OrderID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if current.PaymentStatus == enums.PaymentStatusSucceeded {
			order = current
			alreadyPaid = true
			return nil
		}
		if current.Status != enums.OrderStatusPendingPayment {
			return orders.InvalidState(current.Status)
		}

		if _, err := repo.CancelPendingPayments(ctx, current.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel pending payments")
		}
		payment := &models.Payment{
			OrderID:  current.ID,
			Provider: provider,
			Status:   enums.PaymentStatusSucceeded,
			Amount:   orders.PayTotal(current),
		}
		if intentID != "" {
			payment.IntentID = &intentID
		}
		if err := repo.CreatePayment(ctx, payment); err != nil {
			if db.IsUniqueViolation(err, "") {
				return IntentAlreadyUsed(intentID, "")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment")
		}

		if err := s.carts.WithTx(tx).ClearUserItems(ctx, current.UserID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}

		changed, err := repo.TransitionOrderStatus(ctx, current.ID, enums.OrderStatusPendingPayment, map[string]any{
			"status":         enums.OrderStatusPaid,
			"payment_status": enums.PaymentStatusSucceeded,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
		}
		if !changed {
			return orders.InvalidState(current.Status)
		}

		if err := openShipments(ctx, repo, current); err != nil {
			return err
		}

		order, err = repo.FindOrder(ctx, current.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		return nil
	})
	if err != nil {
		if claimed {
			if releaseErr := s.guard.Release(ctx, intentID, input.OrderID); releaseErr != nil {
				s.logg.Warn(ctx, fmt.Sprintf("payment intent claim not released: %v", releaseErr))
			}
		}
		return nil, err
	}
	if alreadyPaid {
		s.logg.Info(ctx, "payment already confirmed")
		return order, nil
	}

	s.logg.Info(ctx, "payment confirmed")
	if dispatchErr := s.notifier.Dispatch(ctx, notifications.NewEvent(notifications.EventOrderPaid, order.ID, order.UserID, map[string]any{
		"provider":  provider.String(),
		"intent_id": intentID,
		"amount":    orders.PayTotal(order).StringFixed(2),
	})); dispatchErr != nil {
		s.logg.Warn(ctx, fmt.Sprintf("order notification %s not delivered: %v", notifications.EventOrderPaid, dispatchErr))
		s.metrics.IncNotificationFailure(string(notifications.EventOrderPaid))
	}
	return order, nil
}

// History lists every payment attempt for the order, oldest first.
func (s *Service) History(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	if _, err := s.orders.FindOrder(ctx, orderID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, orders.OrderNotFound(orderID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	payments, err := s.orders.ListPayments(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}
	return payments, nil
}

// openShipments creates a pending shipment with its first audit event for
// every sub-order that has none yet.
func openShipments(ctx context.Context, repo orders.Repository, order *models.Order) error {
	note := initialShipmentNote
	for _, sub := range order.SubOrders {
		if len(sub.Shipments) > 0 {
			continue
		}
		shipment := &models.Shipment{SubOrderID: sub.ID, Status: enums.ShipmentStatusPending}
		if err := repo.CreateShipment(ctx, shipment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create shipment")
		}
		if err := repo.CreateShipmentEvent(ctx, &models.ShipmentEvent{
			ShipmentID: shipment.ID,
			Status:     enums.ShipmentStatusPending,
			AddressID:  order.ShippingAddressID,
			Note:       &note,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append shipment event")
		}
	}
	return nil
}
