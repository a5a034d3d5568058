package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketcore/internal/cart"
	"github.com/angelmondragon/marketcore/internal/checkout/helpers"
	"github.com/angelmondragon/marketcore/internal/inventory"
	"github.com/angelmondragon/marketcore/internal/notifications"
	"github.com/angelmondragon/marketcore/internal/orders"
	"github.com/angelmondragon/marketcore/internal/pricing"
	"github.com/angelmondragon/marketcore/pkg/db"
	"github.com/angelmondragon/marketcore/pkg/db/models"
	"github.com/angelmondragon/marketcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketcore/pkg/errors"
	"github.com/angelmondragon/marketcore/pkg/logger"
	"github.com/angelmondragon/marketcore/pkg/metrics"
	"github.com/angelmondragon/marketcore/pkg/money"
)

type reservationRunner interface {
	Reserve(ctx context.Context, tx *gorm.DB, requests []inventory.Request) error
}

// CheckoutInput captures what the buyer submits at checkout.
type CheckoutInput struct {
	UserID    uuid.UUID
	Currency  string
	AddressID *uuid.UUID
	PromoCode string
}

// ServiceParams wires a checkout Service.
type ServiceParams struct {
	Tx              db.TxRunner
	Carts           cart.CartRepository
	Orders          orders.Repository
	Stock           reservationRunner
	Promo           pricing.PromoPolicy
	Shipping        pricing.ShippingPolicy
	DefaultProvider enums.PaymentProvider
	DefaultCurrency enums.Currency
	Notifier        notifications.Dispatcher
	Logger          *logger.Logger
	Metrics         *metrics.OrderMetrics
}

// Service converts a cart into a placed order.
type Service struct {
	tx              db.TxRunner
	carts           cart.CartRepository
	orders          orders.Repository
	stock           reservationRunner
	promo           pricing.PromoPolicy
	shipping        pricing.ShippingPolicy
	defaultProvider enums.PaymentProvider
	defaultCurrency enums.Currency
	notifier        notifications.Dispatcher
	logg            *logger.Logger
	metrics         *metrics.OrderMetrics
}

// NewService builds a checkout service with the required dependencies.
func NewService(p ServiceParams) (*Service, error) {
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if p.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.Stock == nil {
		return nil, fmt.Errorf("stock reserver required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.Promo == nil {
		p.Promo = pricing.NoPromo{}
	}
	if p.Shipping == nil {
		p.Shipping = pricing.NewFlatShipping(pricing.DefaultFlatFee)
	}
	if p.DefaultProvider == "" {
		p.DefaultProvider = enums.PaymentProviderCOD
	}
	if !p.DefaultProvider.IsValid() {
		return nil, fmt.Errorf("invalid default payment provider %q", p.DefaultProvider)
	}
	if p.DefaultCurrency == "" {
		p.DefaultCurrency = enums.CurrencyUSD
	}
	if p.Notifier == nil {
		p.Notifier = notifications.Noop{}
	}
	return &Service{
		tx:              p.Tx,
		carts:           p.Carts,
		orders:          p.Orders,
		stock:           p.Stock,
		promo:           p.Promo,
		shipping:        p.Shipping,
		defaultProvider: p.DefaultProvider,
		defaultCurrency: p.DefaultCurrency,
		notifier:        p.Notifier,
		logg:            p.Logger,
		metrics:         p.Metrics,
	}, nil
}

// Execute reserves stock for every cart line and writes the order, its
// per-seller sub-orders, their items and a pending payment in a single
// transaction. Nothing is written when any step fails. The cart is left
// untouched; it is cleared when payment is confirmed.
func (s *Service) Execute(ctx context.Context, input CheckoutInput) (view *orders.OrderView, err error) {
	started := time.Now()
	defer func() { s.metrics.ObserveOperation("checkout", started, err) }()

	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	currency, err := helpers.ResolveCurrency(input.Currency, s.defaultCurrency)
	if err != nil {
		return nil, err
	}
	promoCode := strings.TrimSpace(input.PromoCode)
	if err := pricing.ValidateCode(promoCode); err != nil {
		return nil, err
	}

	ctx = s.logg.WithUserID(ctx, input.UserID.String())

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)
		repo := s.orders.WithTx(tx)

		snapshot, err := carts.LoadSnapshot(ctx, input.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if snapshot.IsEmpty() {
			return EmptyCart()
		}

		requests := make([]inventory.Request, 0, len(snapshot.Lines))
		for _, line := range snapshot.Lines {
			requests = append(requests, inventory.Request{VariantID: line.VariantID, Qty: line.Qty})
		}
		if err := s.stock.Reserve(ctx, tx, requests); err != nil {
			return pkgerrors.Ensure(err, "reserve stock")
		}

		placed := &models.Order{
			UserID:            input.UserID,
			Currency:          currency,
			ShippingAddressID: input.AddressID,
			ItemsTotal:        decimal.Zero,
			DiscountTotal:     decimal.Zero,
			ShippingTotal:     decimal.Zero,
			Status:            enums.OrderStatusPending,
			PaymentStatus:     enums.PaymentStatusPending,
			PlacedAt:          time.Now().UTC(),
		}
		if promoCode != "" {
			placed.PromoCode = &promoCode
		}
		if err := repo.CreateOrder(ctx, placed); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		var subtotals, discounts, fees []decimal.Decimal
		for _, group := range helpers.GroupLinesBySeller(snapshot.Lines) {
			subtotal := group.Subtotal()
			discount := helpers.ClampDiscount(s.promo.Discount(promoCode, subtotal), subtotal)
			fee := helpers.ClampFee(s.shipping.Fee(group.SellerID, group.ShippingLines()))

			sub := &models.SubOrder{
				OrderID:     placed.ID,
				SellerID:    group.SellerID,
				Subtotal:    subtotal,
				Discount:    discount,
				ShippingFee: fee,
			}
			if err := repo.CreateSubOrder(ctx, sub); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create sub-order")
			}
			items := make([]models.OrderItem, 0, len(group.Lines))
			for _, line := range group.Lines {
				items = append(items, models.OrderItem{
					SubOrderID:    sub.ID,
					VariantID:     line.VariantID,
					Qty:           line.Qty,
					PriceSnapshot: line.PriceSnapshot,
				})
			}
			if err := repo.CreateOrderItems(ctx, items); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
			}

			subtotals = append(subtotals, subtotal)
			discounts = append(discounts, discount)
			fees = append(fees, fee)
		}

		placed.ItemsTotal = money.Sum(subtotals...)
		placed.DiscountTotal = money.Sum(discounts...)
		placed.ShippingTotal = money.Sum(fees...)
		if err := repo.UpdateOrder(ctx, placed.ID, map[string]any{
			"items_total":    placed.ItemsTotal,
			"discount_total": placed.DiscountTotal,
			"shipping_total": placed.ShippingTotal,
			"status":         enums.OrderStatusPendingPayment,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finalize order totals")
		}

		if err := repo.CreatePayment(ctx, &models.Payment{
			OrderID:  placed.ID,
			Provider: s.defaultProvider,
			Status:   enums.PaymentStatusPending,
			Amount:   orders.PayTotal(placed),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}

		order, err = repo.FindOrder(ctx, placed.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		return nil
	})
	if err != nil {
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) && !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			s.logg.Error(ctx, "checkout failed", err)
		}
		return nil, err
	}

	view = orders.NewOrderView(order)
	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(ctx, "order placed")
	if dispatchErr := s.notifier.Dispatch(ctx, notifications.NewEvent(notifications.EventOrderPlaced, order.ID, order.UserID, map[string]any{
		"sub_orders": len(order.SubOrders),
		"pay_total":  view.PayTotal.StringFixed(2),
	})); dispatchErr != nil {
		s.logg.Warn(ctx, fmt.Sprintf("order notification %s not delivered: %v", notifications.EventOrderPlaced, dispatchErr))
		s.metrics.IncNotificationFailure(string(notifications.EventOrderPlaced))
	}
	return view, nil
}
