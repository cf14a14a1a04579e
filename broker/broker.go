// Package broker publishes registration notifications to a message broker.
package broker

import (
	"context"
	"fmt"
)

const (
	KindNone = "none"
	KindAMQP = "amqp"
	KindNATS = "nats"
)

// Publisher sends JSON payloads under a routing key.
type Publisher interface {
	Publish(ctx context.Context, key string, v any) error
	Close() error
}

// New connects the publisher selected by kind. An empty kind means none.
func New(kind, url, exchange string) (Publisher, error) {
	switch kind {
	case "", KindNone:
		return Noop{}, nil
	case KindAMQP:
		return NewAMQP(url, exchange)
	case KindNATS:
		return NewNATS(url, exchange)
	default:
		return nil, fmt.Errorf("unknown broker kind %q", kind)
	}
}

// Noop drops every message.
type Noop struct{}

func (Noop) Publish(context.Context, string, any) error { return nil }

func (Noop) Close() error { return nil }
