package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

const aggregateOrder = "order"

type publisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

// PubSubSink publishes order events to the orders topic.
type PubSubSink struct {
	pub     publisher
	timeout time.Duration
}

// NewPubSubSink wraps a topic publisher.
func NewPubSubSink(p *gcppubsub.Publisher, timeout time.Duration) (*PubSubSink, error) {
	if p == nil {
		return nil, fmt.Errorf("pubsub publisher required")
	}
	return newPubSubSink(&gcpPublisher{Publisher: p}, timeout), nil
}

func newPubSubSink(pub publisher, timeout time.Duration) *PubSubSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PubSubSink{pub: pub, timeout: timeout}
}

func (s *PubSubSink) Dispatch(ctx context.Context, event Event) error {
	data, err := event.Encode()
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}
	msg := &gcppubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_id":       event.ID.String(),
			"event_type":     string(event.Type),
			"aggregate_type": aggregateOrder,
			"aggregate_id":   event.OrderID.String(),
			"created_at":     event.OccurredAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	result := s.pub.Publish(publishCtx, msg)
	if result == nil {
		return errors.New("publisher returned nil result")
	}
	if _, err := result.Get(publishCtx); err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}
	return nil
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
