// Package app wires repositories, pricing policies, the payment intent
// guard, notification sinks and metrics into the order core services.
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/marketcore/internal/cart"
	"github.com/angelmondragon/marketcore/internal/checkout"
	"github.com/angelmondragon/marketcore/internal/inventory"
	"github.com/angelmondragon/marketcore/internal/notifications"
	"github.com/angelmondragon/marketcore/internal/orders"
	"github.com/angelmondragon/marketcore/internal/payments"
	"github.com/angelmondragon/marketcore/internal/pricing"
	"github.com/angelmondragon/marketcore/internal/shipments"
	"github.com/angelmondragon/marketcore/pkg/config"
	"github.com/angelmondragon/marketcore/pkg/db"
	"github.com/angelmondragon/marketcore/pkg/enums"
	"github.com/angelmondragon/marketcore/pkg/logger"
	"github.com/angelmondragon/marketcore/pkg/metrics"
	"github.com/angelmondragon/marketcore/pkg/pubsub"
	"github.com/angelmondragon/marketcore/pkg/redis"
)

// Params are the already-connected infrastructure clients. Redis and PubSub
// are optional; without them the intent guard and event publishing are off.
type Params struct {
	Config     *config.Config
	DB         *db.Client
	Redis      *redis.Client
	PubSub     *pubsub.Client
	Registerer prometheus.Registerer
	Logger     *logger.Logger
	// Sinks receive order events alongside the log and pubsub sinks.
	Sinks []notifications.Dispatcher
}

// Core is the assembled order core.
type Core struct {
	Carts     *cart.Repository
	Checkout  *checkout.Service
	Payments  *payments.Service
	Shipments *shipments.Service
	Orders    *orders.Service
	Metrics   *metrics.OrderMetrics

	notifier *notifications.Async
	pingers  []db.Pinger
	closers  []io.Closer
}

// Build assembles the services from p.
func Build(p Params) (*Core, error) {
	if p.Config == nil {
		return nil, fmt.Errorf("config required")
	}
	if p.DB == nil {
		return nil, fmt.Errorf("database client required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg := p.Config

	provider, err := enums.ParsePaymentProvider(cfg.Orders.DefaultProvider)
	if err != nil {
		return nil, fmt.Errorf("default payment provider: %w", err)
	}
	currency, err := enums.ParseCurrency(cfg.Orders.DefaultCurrency)
	if err != nil {
		return nil, fmt.Errorf("default currency: %w", err)
	}
	fee, err := cfg.Orders.FlatShipping()
	if err != nil {
		return nil, err
	}
	promos, err := cfg.Orders.PromoPercents()
	if err != nil {
		return nil, err
	}

	orderMetrics := metrics.NewOrderMetrics(cfg.Metrics.Namespace, p.Registerer)

	sinks := notifications.Multi{notifications.NewLogSink(p.Logger)}
	sinks = append(sinks, p.Sinks...)
	if p.PubSub != nil {
		sink, err := notifications.NewPubSubSink(p.PubSub.OrdersPublisher(), cfg.PubSub.PublishTimeout)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
	}
	notifier, err := notifications.NewAsync(sinks, cfg.Orders.NotifyTimeout, p.Logger, orderMetrics)
	if err != nil {
		return nil, err
	}

	var guard *payments.IntentGuard
	if p.Redis != nil {
		guard = payments.NewIntentGuard(p.Redis, cfg.Orders.IntentGuardTTL)
	}

	conn := p.DB.DB()
	carts := cart.NewRepository(conn)
	orderRepo := orders.NewRepository(conn)
	stock := inventory.Engine{}

	checkoutSvc, err := checkout.NewService(checkout.ServiceParams{
		Tx:              p.DB,
		Carts:           carts,
		Orders:          orderRepo,
		Stock:           stock,
		Promo:           pricing.NewCodeTablePromo(promos),
		Shipping:        pricing.NewFlatShipping(fee),
		DefaultProvider: provider,
		DefaultCurrency: currency,
		Notifier:        notifier,
		Logger:          p.Logger,
		Metrics:         orderMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("checkout service: %w", err)
	}
	paymentSvc, err := payments.NewService(payments.ServiceParams{
		Tx:              p.DB,
		Orders:          orderRepo,
		Carts:           carts,
		Guard:           guard,
		DefaultProvider: provider,
		Notifier:        notifier,
		Logger:          p.Logger,
		Metrics:         orderMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("payments service: %w", err)
	}
	shipmentSvc, err := shipments.NewService(shipments.ServiceParams{
		Tx:       p.DB,
		Orders:   orderRepo,
		Notifier: notifier,
		Logger:   p.Logger,
		Metrics:  orderMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("shipments service: %w", err)
	}
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:         orderRepo,
		Tx:           p.DB,
		Stock:        stock,
		Refunds:      orders.NoRefunds{},
		Notifier:     notifier,
		Logger:       p.Logger,
		Metrics:      orderMetrics,
		DefaultLimit: cfg.Orders.ListDefaultLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("orders service: %w", err)
	}

	core := &Core{
		Carts:     carts,
		Checkout:  checkoutSvc,
		Payments:  paymentSvc,
		Shipments: shipmentSvc,
		Orders:    orderSvc,
		Metrics:   orderMetrics,
		notifier:  notifier,
	}
	// drain notifications before the clients they publish through go away
	core.closers = append(core.closers, notifier)
	core.pingers = append(core.pingers, p.DB)
	if p.PubSub != nil {
		core.pingers = append(core.pingers, p.PubSub)
		core.closers = append(core.closers, p.PubSub)
	}
	if p.Redis != nil {
		core.pingers = append(core.pingers, p.Redis)
		core.closers = append(core.closers, p.Redis)
	}
	core.closers = append(core.closers, p.DB)
	return core, nil
}

// Ping checks every connected dependency.
func (c *Core) Ping(ctx context.Context) error {
	var err error
	for _, p := range c.pingers {
		err = multierr.Append(err, p.Ping(ctx))
	}
	return err
}

// Flush waits for in-flight notifications.
func (c *Core) Flush() {
	if c.notifier != nil {
		c.notifier.Wait()
	}
}

// Close drains notifications and closes every client, returning all errors.
func (c *Core) Close() error {
	var err error
	for _, closer := range c.closers {
		err = multierr.Append(err, closer.Close())
	}
	return err
}
