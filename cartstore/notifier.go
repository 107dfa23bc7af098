package cartstore

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Alert texts shown to the user when a mutation targets an item that is not in the cart.
const (
	AlertTitle           = "Error"
	AlertIncrementFailed = "could not add another unit to cart"
	AlertDecrementFailed = "could not remove item from cart"
)

// Notifier surfaces a modal alert to the user.
type Notifier interface {
	Alert(ctx context.Context, title, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, title, message string)

func (f NotifierFunc) Alert(ctx context.Context, title, message string) { f(ctx, title, message) }

// LogNotifier reports alerts as warnings.
type LogNotifier struct {
	log logrus.FieldLogger
}

func NewLogNotifier(log logrus.FieldLogger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Alert(ctx context.Context, title, message string) {
	n.log.WithField("title", title).Warn(message)
}
