package checkout

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketcore/internal/cart"
	"github.com/angelmondragon/marketcore/internal/inventory"
	"github.com/angelmondragon/marketcore/internal/notifications"
	"github.com/angelmondragon/marketcore/internal/orders"
	"github.com/angelmondragon/marketcore/internal/pricing"
	"github.com/angelmondragon/marketcore/pkg/db/dbtest"
	"github.com/angelmondragon/marketcore/pkg/db/models"
	"github.com/angelmondragon/marketcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketcore/pkg/errors"
	"github.com/angelmondragon/marketcore/pkg/logger"
	"github.com/angelmondragon/marketcore/pkg/money"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *recordingNotifier) Dispatch(_ context.Context, event notifications.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type fixture struct {
	conn     *gorm.DB
	carts    *cart.Repository
	svc      *Service
	notifier *recordingNotifier
}

func newFixture(t *testing.T, promo pricing.PromoPolicy) fixture {
	t.Helper()
	client := dbtest.Open(t)
	carts := cart.NewRepository(client.DB())
	notifier := &recordingNotifier{}
	svc, err := NewService(ServiceParams{
		Tx:       client,
		Carts:    carts,
		Orders:   orders.NewRepository(client.DB()),
		Stock:    inventory.Engine{},
		Promo:    promo,
		Shipping: pricing.NewFlatShipping(pricing.DefaultFlatFee),
		Notifier: notifier,
		Logger:   logger.Nop(),
	})
	require.NoError(t, err)
	return fixture{conn: client.DB(), carts: carts, svc: svc, notifier: notifier}
}

func (f fixture) addToCart(t *testing.T, userID uuid.UUID, variant models.ProductVariant, qty int) {
	t.Helper()
	_, err := f.carts.AddItem(context.Background(), userID, variant.ID, qty)
	require.NoError(t, err)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)

	client := dbtest.Open(t)
	_, err = NewService(ServiceParams{
		Tx:              client,
		Carts:           cart.NewRepository(client.DB()),
		Orders:          orders.NewRepository(client.DB()),
		Stock:           inventory.Engine{},
		Logger:          logger.Nop(),
		DefaultProvider: enums.PaymentProvider("barter"),
	})
	require.Error(t, err)
}

func TestExecuteSplitsOrderPerSeller(t *testing.T) {
	f := newFixture(t, pricing.NoPromo{})
	userID := uuid.New()
	sellerA, sellerB := uuid.New(), uuid.New()
	variantA := dbtest.SeedVariant(t, f.conn, sellerA, "10.00", 5)
	variantB := dbtest.SeedVariant(t, f.conn, sellerB, "25.00", 2)
	f.addToCart(t, userID, variantA, 3)
	f.addToCart(t, userID, variantB, 1)

	view, err := f.svc.Execute(context.Background(), CheckoutInput{UserID: userID})
	require.NoError(t, err)

	order := view.Order
	assert.Equal(t, enums.OrderStatusPendingPayment, order.Status)
	assert.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, enums.CurrencyUSD, order.Currency)
	assert.Equal(t, "55.00", order.ItemsTotal.StringFixed(2))
	assert.True(t, order.DiscountTotal.IsZero())
	assert.Equal(t, "80.00", order.ShippingTotal.StringFixed(2))
	assert.Equal(t, "135.00", view.PayTotal.StringFixed(2))

	require.Len(t, order.SubOrders, 2)
	bySeller := map[uuid.UUID]models.SubOrder{}
	for _, sub := range order.SubOrders {
		bySeller[sub.SellerID] = sub
		assert.Equal(t, "40.00", sub.ShippingFee.StringFixed(2))
		assert.Empty(t, sub.Shipments)
	}
	assert.Equal(t, "30.00", bySeller[sellerA].Subtotal.StringFixed(2))
	assert.Equal(t, "25.00", bySeller[sellerB].Subtotal.StringFixed(2))
	require.Len(t, bySeller[sellerA].Items, 1)
	assert.Equal(t, 3, bySeller[sellerA].Items[0].Qty)
	assert.True(t, bySeller[sellerA].Items[0].PriceSnapshot.Equal(money.MustParse("10.00")))

	require.Len(t, order.Payments, 1)
	assert.Equal(t, enums.PaymentProviderCOD, order.Payments[0].Provider)
	assert.Equal(t, enums.PaymentStatusPending, order.Payments[0].Status)
	assert.Equal(t, "135.00", order.Payments[0].Amount.StringFixed(2))

	assert.Equal(t, 2, dbtest.Stock(t, f.conn, variantA.ID))
	assert.Equal(t, 1, dbtest.Stock(t, f.conn, variantB.ID))

	// the cart survives checkout until payment confirmation
	snapshot, err := f.carts.LoadSnapshot(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, snapshot.Lines, 2)

	require.Equal(t, 1, f.notifier.count())
	assert.Equal(t, notifications.EventOrderPlaced, f.notifier.events[0].Type)
	assert.Equal(t, order.ID, f.notifier.events[0].OrderID)
}

func TestExecuteEmptyCart(t *testing.T) {
	f := newFixture(t, pricing.NoPromo{})

	_, err := f.svc.Execute(context.Background(), CheckoutInput{UserID: uuid.New()})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Contains(t, err.Error(), "cart is empty")
	assert.Zero(t, dbtest.Count(t, f.conn, &models.Order{}))
	assert.Zero(t, f.notifier.count())
}

func TestExecuteInsufficientStockRollsBack(t *testing.T) {
	f := newFixture(t, pricing.NoPromo{})
	userID := uuid.New()
	plenty := dbtest.SeedVariant(t, f.conn, uuid.New(), "5.00", 10)
	scarce := dbtest.SeedVariant(t, f.conn, uuid.New(), "7.50", 1)
	f.addToCart(t, userID, plenty, 4)
	f.addToCart(t, userID, scarce, 2)

	_, err := f.svc.Execute(context.Background(), CheckoutInput{UserID: userID})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	assert.Equal(t, 10, dbtest.Stock(t, f.conn, plenty.ID))
	assert.Equal(t, 1, dbtest.Stock(t, f.conn, scarce.ID))
	assert.Zero(t, dbtest.Count(t, f.conn, &models.Order{}))
	assert.Zero(t, dbtest.Count(t, f.conn, &models.SubOrder{}))
	assert.Zero(t, dbtest.Count(t, f.conn, &models.Payment{}))
}

func TestExecuteAppliesPromoPerSubOrder(t *testing.T) {
	f := newFixture(t, pricing.DefaultPromo())
	userID := uuid.New()
	a := dbtest.SeedVariant(t, f.conn, uuid.New(), "10.00", 5)
	b := dbtest.SeedVariant(t, f.conn, uuid.New(), "25.00", 5)
	f.addToCart(t, userID, a, 3)
	f.addToCart(t, userID, b, 1)

	view, err := f.svc.Execute(context.Background(), CheckoutInput{UserID: userID, PromoCode: "WELCOME10"})
	require.NoError(t, err)

	order := view.Order
	require.NotNil(t, order.PromoCode)
	assert.Equal(t, "WELCOME10", *order.PromoCode)
	assert.Equal(t, "5.50", order.DiscountTotal.StringFixed(2))
	assert.Equal(t, "129.50", view.PayTotal.StringFixed(2))

	var discounts []decimal.Decimal
	for _, sub := range order.SubOrders {
		discounts = append(discounts, sub.Discount)
	}
	assert.True(t, money.Sum(discounts...).Equal(order.DiscountTotal))
}

func TestExecuteUnknownPromoIsFree(t *testing.T) {
	f := newFixture(t, pricing.DefaultPromo())
	userID := uuid.New()
	f.addToCart(t, userID, dbtest.SeedVariant(t, f.conn, uuid.New(), "10.00", 5), 1)

	view, err := f.svc.Execute(context.Background(), CheckoutInput{UserID: userID, PromoCode: "NOPE"})
	require.NoError(t, err)
	assert.True(t, view.Order.DiscountTotal.IsZero())
}

func TestExecuteValidatesInput(t *testing.T) {
	f := newFixture(t, pricing.NoPromo{})

	_, err := f.svc.Execute(context.Background(), CheckoutInput{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Execute(context.Background(), CheckoutInput{UserID: uuid.New(), Currency: "dollars"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Execute(context.Background(), CheckoutInput{UserID: uuid.New(), PromoCode: "bad code!"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestExecuteTotalsReconcile(t *testing.T) {
	f := newFixture(t, pricing.DefaultPromo())
	userID := uuid.New()
	f.addToCart(t, userID, dbtest.SeedVariant(t, f.conn, uuid.New(), "3.3333", 10), 3)
	f.addToCart(t, userID, dbtest.SeedVariant(t, f.conn, uuid.New(), "0.0050", 10), 1)
	f.addToCart(t, userID, dbtest.SeedVariant(t, f.conn, uuid.New(), "19.99", 10), 2)

	addressID := uuid.New()
	view, err := f.svc.Execute(context.Background(), CheckoutInput{
		UserID:    userID,
		Currency:  "eur",
		AddressID: &addressID,
		PromoCode: "WELCOME10",
	})
	require.NoError(t, err)

	order := view.Order
	assert.Equal(t, "EUR", order.Currency.String())
	require.NotNil(t, order.ShippingAddressID)
	assert.Equal(t, addressID, *order.ShippingAddressID)

	var subtotals, discounts, fees []decimal.Decimal
	for _, sub := range order.SubOrders {
		var lines []decimal.Decimal
		for _, item := range sub.Items {
			lines = append(lines, money.LineTotal(item.PriceSnapshot, item.Qty))
		}
		assert.True(t, money.Sum(lines...).Equal(sub.Subtotal), "sub-order subtotal")
		assert.False(t, sub.Discount.GreaterThan(sub.Subtotal))
		subtotals = append(subtotals, sub.Subtotal)
		discounts = append(discounts, sub.Discount)
		fees = append(fees, sub.ShippingFee)
	}
	assert.True(t, money.Sum(subtotals...).Equal(order.ItemsTotal))
	assert.True(t, money.Sum(discounts...).Equal(order.DiscountTotal))
	assert.True(t, money.Sum(fees...).Equal(order.ShippingTotal))
	assert.True(t, order.Payments[0].Amount.Equal(view.PayTotal))
}

func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	f := newFixture(t, pricing.NoPromo{})
	variant := dbtest.SeedVariant(t, f.conn, uuid.New(), "10.00", 3)

	const buyers = 6
	users := make([]uuid.UUID, buyers)
	for i := range users {
		users[i] = uuid.New()
		f.addToCart(t, users[i], variant, 1)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for _, userID := range users {
		wg.Add(1)
		go func(userID uuid.UUID) {
			defer wg.Done()
			_, err := f.svc.Execute(context.Background(), CheckoutInput{UserID: userID})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case pkgerrors.IsCode(err, pkgerrors.CodeConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(userID)
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	assert.Equal(t, buyers-3, conflicts)
	assert.Equal(t, 0, dbtest.Stock(t, f.conn, variant.ID))
	assert.Equal(t, int64(3), dbtest.Count(t, f.conn, &models.Order{}))
}
