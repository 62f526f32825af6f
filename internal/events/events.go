// Package events publishes domain notifications after state changes commit.
// Delivery is best effort: a failed publish never undoes the write it reports.
package events

import (
	"context"
	"time"
)

const (
	TypeOrderCreated         = "order.created"
	TypeOrderStatusChanged   = "order.status_changed"
	TypePaymentStatusChanged = "payment.status_changed"
	TypeStockSettled         = "stock.settled"
)

// Event is serialized as JSON. Key orders events of one aggregate on one partition.
type Event struct {
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

func New(eventType, key string, payload any) Event {
	return Event{
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

// Nop discards events. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, ...Event) error { return nil }
func (Nop) Close() error                            { return nil }
