package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketcore/internal/inventory"
	"github.com/angelmondragon/marketcore/internal/notifications"
	"github.com/angelmondragon/marketcore/pkg/db"
	"github.com/angelmondragon/marketcore/pkg/db/dbtest"
	"github.com/angelmondragon/marketcore/pkg/db/models"
	"github.com/angelmondragon/marketcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketcore/pkg/errors"
	"github.com/angelmondragon/marketcore/pkg/logger"
	"github.com/angelmondragon/marketcore/pkg/money"
)

type capturingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
	err    error
}

func (c *capturingNotifier) Dispatch(_ context.Context, event notifications.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return c.err
}

type countingRefunds struct {
	calls int
}

func (c *countingRefunds) RecordRefund(context.Context, *gorm.DB, *models.Order) error {
	c.calls++
	return nil
}

type fixture struct {
	client   *db.Client
	conn     *gorm.DB
	svc      *Service
	notifier *capturingNotifier
	refunds  *countingRefunds
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.Open(t)
	notifier := &capturingNotifier{}
	refunds := &countingRefunds{}
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(client.DB()),
		Tx:       client,
		Stock:    inventory.Engine{},
		Refunds:  refunds,
		Notifier: notifier,
		Logger:   logger.Nop(),
	})
	require.NoError(t, err)
	return fixture{client: client, conn: client.DB(), svc: svc, notifier: notifier, refunds: refunds}
}

type seedLine struct {
	variant models.ProductVariant
	qty     int
}

// seedOrder writes a committed order graph with one sub-order per line group
// and, when shipmentStatuses is non-empty, one shipment per sub-order.
func seedOrder(t *testing.T, conn *gorm.DB, userID uuid.UUID, groups [][]seedLine, shipmentStatuses ...enums.ShipmentStatus) *models.Order {
	t.Helper()
	repo := NewRepository(conn)
	ctx := context.Background()

	order := &models.Order{
		UserID:        userID,
		Currency:      enums.CurrencyUSD,
		ItemsTotal:    money.MustParse("10.00"),
		DiscountTotal: decimal.Zero,
		ShippingTotal: money.MustParse("40.00"),
		Status:        enums.OrderStatusPendingPayment,
		PaymentStatus: enums.PaymentStatusPending,
		PlacedAt:      time.Now().UTC(),
	}
	if len(shipmentStatuses) > 0 {
		order.Status = enums.OrderStatusPaid
		order.PaymentStatus = enums.PaymentStatusSucceeded
	}
	require.NoError(t, repo.CreateOrder(ctx, order))

	for i, group := range groups {
		sub := &models.SubOrder{OrderID: order.ID, SellerID: uuid.New(), Subtotal: money.MustParse("10.00")}
		require.NoError(t, repo.CreateSubOrder(ctx, sub))
		items := make([]models.OrderItem, 0, len(group))
		for _, line := range group {
			items = append(items, models.OrderItem{SubOrderID: sub.ID, VariantID: line.variant.ID, Qty: line.qty, PriceSnapshot: line.variant.Price})
		}
		require.NoError(t, repo.CreateOrderItems(ctx, items))
		if i < len(shipmentStatuses) {
			require.NoError(t, repo.CreateShipment(ctx, &models.Shipment{SubOrderID: sub.ID, Status: shipmentStatuses[i]}))
		}
	}
	require.NoError(t, repo.CreatePayment(ctx, &models.Payment{
		OrderID:  order.ID,
		Provider: enums.PaymentProviderCOD,
		Status:   order.PaymentStatus,
		Amount:   PayTotal(order),
	}))
	return order
}

func TestGetEnforcesOwnership(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	variant := dbtest.SeedVariant(t, f.conn, uuid.New(), "10.00", 5)
	order := seedOrder(t, f.conn, userID, [][]seedLine{{{variant: variant, qty: 1}}})

	view, err := f.svc.Get(context.Background(), userID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, view.Order.ID)
	assert.True(t, view.PayTotal.Equal(money.MustParse("50.00")))
	require.Len(t, view.Order.SubOrders, 1)
	assert.Len(t, view.Order.SubOrders[0].Items, 1)
	assert.Len(t, view.Order.Payments, 1)

	_, err = f.svc.Get(context.Background(), uuid.New(), order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Get(context.Background(), userID, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListNewestFirstWithLimit(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	variant := dbtest.SeedVariant(t, f.conn, uuid.New(), "10.00", 5)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		order := seedOrder(t, f.conn, userID, [][]seedLine{{{variant: variant, qty: 1}}})
		placed := time.Date(2026, 1, 1+i, 0, 0, 0, 0, time.UTC)
		require.NoError(t, f.conn.Model(&models.Order{}).Where("id = ?", order.ID).Update("placed_at", placed).Error)
		ids = append(ids, order.ID)
	}
	seedOrder(t, f.conn, uuid.New(), [][]seedLine{{{variant: variant, qty: 1}}})

	views, err := f.svc.List(context.Background(), userID, 2)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, ids[2], views[0].Order.ID)
	assert.Equal(t, ids[1], views[1].Order.ID)

	all, err := f.svc.List(context.Background(), userID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = f.svc.List(context.Background(), uuid.Nil, 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCancelRestocksAndIsGuardedAgainstRepeats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	a := dbtest.SeedVariant(t, f.conn, uuid.New(), "10.00", 2)
	b := dbtest.SeedVariant(t, f.conn, uuid.New(), "25.00", 0)
	order := seedOrder(t, f.conn, userID, [][]seedLine{{{variant: a, qty: 3}}, {{variant: b, qty: 1}}})

	canceled, err := f.svc.Cancel(ctx, CancelInput{UserID: userID, OrderID: order.ID, Reason: "changed my mind"})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCanceled, canceled.Status)
	assert.Equal(t, enums.PaymentStatusCanceled, canceled.PaymentStatus)
	require.NotNil(t, canceled.CanceledAt)
	require.NotNil(t, canceled.CancelReason)
	assert.Equal(t, "changed my mind", *canceled.CancelReason)
	require.Len(t, canceled.Payments, 1)
	assert.Equal(t, enums.PaymentStatusCanceled, canceled.Payments[0].Status)
	assert.Equal(t, 5, dbtest.Stock(t, f.conn, a.ID))
	assert.Equal(t, 1, dbtest.Stock(t, f.conn, b.ID))
	assert.Equal(t, 0, f.refunds.calls)

	_, err = f.svc.Cancel(ctx, CancelInput{UserID: userID, OrderID: order.ID})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.Equal(t, 5, dbtest.Stock(t, f.conn, a.ID))
	assert.Equal(t, 1, dbtest.Stock(t, f.conn, b.ID))

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, notifications.EventOrderCanceled, f.notifier.events[0].Type)
}

func TestCancelRefusesMovingShipments(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	a := dbtest.SeedVariant(t, f.conn, uuid.New(), "10.00", 0)
	b := dbtest.SeedVariant(t, f.conn, uuid.New(), "10.00", 0)
	order := seedOrder(t, f.conn, userID,
		[][]seedLine{{{variant: a, qty: 1}}, {{variant: b, qty: 1}}},
		enums.ShipmentStatusPacking, enums.ShipmentStatusInTransit)

	_, err := f.svc.Cancel(context.Background(), CancelInput{UserID: userID, OrderID: order.ID})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.Contains(t, err.Error(), "in_transit")

	assert.Equal(t, 0, dbtest.Stock(t, f.conn, a.ID))
	reloaded, err := f.svc.Get(context.Background(), userID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, reloaded.Order.Status)
	assert.Equal(t, enums.ShipmentStatusPacking, reloaded.Order.SubOrders[0].Shipments[0].Status)
}

// racingRepo moves a shipment to in_transit right after Cancel reads the
// order graph, as a concurrent shipment update would.
type racingRepo struct {
	Repository
	tx         *gorm.DB
	shipmentID uuid.UUID
}

func (r *racingRepo) WithTx(tx *gorm.DB) Repository {
	return &racingRepo{Repository: r.Repository.WithTx(tx), tx: tx, shipmentID: r.shipmentID}
}

func (r *racingRepo) FindUserOrderForUpdate(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := r.Repository.FindUserOrderForUpdate(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	err = r.tx.Model(&models.Shipment{}).Where("id = ?", r.shipmentID).
		Update("status", enums.ShipmentStatusInTransit).Error
	return order, err
}

func TestCancelDoesNotOverwriteShipmentThatStartedMoving(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	a := dbtest.SeedVariant(t, f.conn, uuid.New(), "10.00", 0)
	order := seedOrder(t, f.conn, userID, [][]seedLine{{{variant: a, qty: 2}}}, enums.ShipmentStatusPacking)
	require.NoError(t, f.conn.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("status", enums.OrderStatusFulfilling).Error)

	var shipment models.Shipment
	require.NoError(t, f.conn.Joins("JOIN sub_orders ON sub_orders.id = shipments.sub_order_id").
		Where("sub_orders.order_id = ?", order.ID).First(&shipment).Error)

	svc, err := NewService(ServiceParams{
		Repo:    &racingRepo{Repository: NewRepository(f.conn), shipmentID: shipment.ID},
		Tx:      f.client,
		Stock:   inventory.Engine{},
		Refunds: f.refunds,
		Logger:  logger.Nop(),
	})
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), CancelInput{UserID: userID, OrderID: order.ID})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.Contains(t, err.Error(), "in_transit")

	// the whole cancellation rolled back
	assert.Equal(t, 0, dbtest.Stock(t, f.conn, a.ID))
	assert.Equal(t, 0, f.refunds.calls)
	reloaded, err := f.svc.Get(context.Background(), userID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusFulfilling, reloaded.Order.Status)
	assert.Equal(t, enums.ShipmentStatusPacking, reloaded.Order.SubOrders[0].Shipments[0].Status)
}

func TestTransitionShipmentStatusIsConditional(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := dbtest.SeedVariant(t, f.conn, uuid.New(), "10.00", 0)
	order := seedOrder(t, f.conn, uuid.New(), [][]seedLine{{{variant: a, qty: 1}}}, enums.ShipmentStatusInTransit)
	repo := NewRepository(f.conn)

	loaded, err := repo.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	shipmentID := loaded.SubOrders[0].Shipments[0].ID

	changed, err := repo.TransitionShipmentStatus(ctx, shipmentID, enums.ShipmentStatusPacking, enums.ShipmentStatusCanceled)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = repo.TransitionShipmentStatus(ctx, shipmentID, enums.ShipmentStatusInTransit, enums.ShipmentStatusDelivered)
	require.NoError(t, err)
	assert.True(t, changed)

	shipment, err := repo.FindShipment(ctx, shipmentID)
	require.NoError(t, err)
	assert.Equal(t, enums.ShipmentStatusDelivered, shipment.Status)
}

func TestFindUserOrderForUpdateEnforcesOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	a := dbtest.SeedVariant(t, f.conn, uuid.New(), "10.00", 0)
	order := seedOrder(t, f.conn, userID, [][]seedLine{{{variant: a, qty: 1}}})
	repo := NewRepository(f.conn)

	loaded, err := repo.FindUserOrderForUpdate(ctx, userID, order.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.SubOrders, 1)

	_, err = repo.FindUserOrderForUpdate(ctx, uuid.New(), order.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCancelPaidOrderClosesShipmentsAndCallsRefunds(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	a := dbtest.SeedVariant(t, f.conn, uuid.New(), "10.00", 0)
	order := seedOrder(t, f.conn, userID, [][]seedLine{{{variant: a, qty: 2}}}, enums.ShipmentStatusPending)

	canceled, err := f.svc.Cancel(context.Background(), CancelInput{UserID: userID, OrderID: order.ID})
	require.NoError(t, err)
	assert.Nil(t, canceled.CancelReason)
	assert.Equal(t, enums.PaymentStatusSucceeded, canceled.PaymentStatus)
	assert.Equal(t, enums.ShipmentStatusCanceled, canceled.SubOrders[0].Shipments[0].Status)
	assert.Equal(t, 1, f.refunds.calls)
	assert.Equal(t, 2, dbtest.Stock(t, f.conn, a.ID))

	events, err := NewRepository(f.conn).ListShipmentEvents(context.Background(), canceled.SubOrders[0].Shipments[0].ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, enums.ShipmentStatusCanceled, events[0].Status)
}

func TestCancelUnknownOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Cancel(context.Background(), CancelInput{UserID: uuid.New(), OrderID: uuid.New()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCancelNotificationFailureDoesNotFailCancel(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("queue unavailable")
	userID := uuid.New()
	a := dbtest.SeedVariant(t, f.conn, uuid.New(), "10.00", 0)
	order := seedOrder(t, f.conn, userID, [][]seedLine{{{variant: a, qty: 1}}})

	_, err := f.svc.Cancel(context.Background(), CancelInput{UserID: userID, OrderID: order.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, dbtest.Stock(t, f.conn, a.ID))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}
