package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/marketcore/pkg/logger"
	"github.com/angelmondragon/marketcore/pkg/metrics"
)

// Dispatcher delivers an event to one or more downstream sinks.
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event) error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Dispatch(context.Context, Event) error { return nil }

// Multi delivers to every sink and combines their failures.
type Multi []Dispatcher

func (m Multi) Dispatch(ctx context.Context, event Event) error {
	var err error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		err = multierr.Append(err, sink.Dispatch(ctx, event))
	}
	return err
}

// LogSink writes each event to the structured log.
type LogSink struct {
	logg *logger.Logger
}

func NewLogSink(logg *logger.Logger) *LogSink {
	return &LogSink{logg: logg}
}

func (s *LogSink) Dispatch(ctx context.Context, event Event) error {
	if s == nil || s.logg == nil {
		return nil
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":   event.ID.String(),
		"event_type": string(event.Type),
		"order_id":   event.OrderID.String(),
	})
	s.logg.Info(ctx, "order event")
	return nil
}

// Async hands events to a background goroutine so callers never wait on, or
// fail because of, downstream delivery.
type Async struct {
	next    Dispatcher
	timeout time.Duration
	logg    *logger.Logger
	metrics *metrics.OrderMetrics

	// mu orders wg.Add against Wait and guards closed.
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// ErrClosed is returned by Async.Dispatch once the dispatcher is closed.
var ErrClosed = errors.New("notifications: dispatcher closed")

func NewAsync(next Dispatcher, timeout time.Duration, logg *logger.Logger, m *metrics.OrderMetrics) (*Async, error) {
	if next == nil {
		return nil, fmt.Errorf("notification sink required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Async{next: next, timeout: timeout, logg: logg, metrics: m}, nil
}

// Dispatch queues event for delivery. Delivery failures are logged and
// counted; the only error returned is ErrClosed, after Close.
func (a *Async) Dispatch(ctx context.Context, event Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	// detach from the request so a finished caller does not cancel delivery
	base := context.WithoutCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		sendCtx, cancel := context.WithTimeout(base, a.timeout)
		defer cancel()
		if err := a.next.Dispatch(sendCtx, event); err != nil {
			logCtx := a.logg.WithFields(base, map[string]any{
				"event_id":   event.ID.String(),
				"event_type": string(event.Type),
				"order_id":   event.OrderID.String(),
			})
			a.logg.Error(logCtx, "order notification failed", err)
			a.metrics.IncNotificationFailure(string(event.Type))
		}
	}()
	return nil
}

// Wait blocks until in-flight deliveries finish. Dispatch calls made while
// waiting block until it returns.
func (a *Async) Wait() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.wg.Wait()
}

// Close drains in-flight deliveries and refuses further events.
func (a *Async) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.wg.Wait()
	return nil
}
