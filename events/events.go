// Package events publishes cart domain events to interested consumers.
package events

import (
	"context"
	"time"
)

// Type names an event and doubles as its topic suffix.
type Type string

const (
	ItemAdded       Type = "cart.item.added"
	ItemIncremented Type = "cart.item.incremented"
	ItemDecremented Type = "cart.item.decremented"
	ItemRemoved     Type = "cart.item.removed"
)

// Event is emitted after a cart mutation has been applied.
type Event struct {
	Type      Type      `json:"type"`
	ItemID    string    `json:"item_id"`
	Quantity  int       `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher delivers events. Implementations must not block the caller for long.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
