package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// KafkaPublisher sends events to Kafka, one topic per event type, keyed by item id.
// Writes are asynchronous; delivery failures are only logged.
type KafkaPublisher struct {
	writer      *kafka.Writer
	topicPrefix string
	log         logrus.FieldLogger
}

// NewKafkaPublisher creates a publisher for the given brokers. topicPrefix, if set,
// is prepended to every topic followed by a dot.
func NewKafkaPublisher(brokers []string, topicPrefix string, log logrus.FieldLogger) *KafkaPublisher {
	log = log.WithField("publisher", "kafka")

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		Async:                  true,
		BatchTimeout:           50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.WithError(err).Warnf("failed to deliver %d cart event(s)", len(messages))
			}
		},
	}

	log.WithField("brokers", brokers).Info("kafka publisher created")
	return &KafkaPublisher{
		writer:      writer,
		topicPrefix: topicPrefix,
		log:         log,
	}
}

// Topic returns the topic an event of type t is written to.
func (p *KafkaPublisher) Topic(t Type) string {
	if p.topicPrefix == "" {
		return string(t)
	}
	return p.topicPrefix + "." + string(t)
}

// Publish queues e for delivery.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	msg, err := p.message(e)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "write to %s", msg.Topic)
	}
	return nil
}

// message builds the Kafka record for e: keyed by item id so all events of an
// item land on one partition, JSON value, event timestamp.
func (p *KafkaPublisher) message(e Event) (kafka.Message, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, errors.Wrap(err, "marshal cart event")
	}
	return kafka.Message{
		Topic: p.Topic(e.Type),
		Key:   []byte(e.ItemID),
		Value: data,
		Time:  e.Timestamp,
	}, nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
