package events

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogPublisher writes events to the structured log. Used when no broker is configured.
type LogPublisher struct {
	log logrus.FieldLogger
}

func NewLogPublisher(log logrus.FieldLogger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(ctx context.Context, e Event) error {
	p.log.WithFields(logrus.Fields{
		"event":    string(e.Type),
		"item_id":  e.ItemID,
		"quantity": e.Quantity,
	}).Info("cart event")
	return nil
}
