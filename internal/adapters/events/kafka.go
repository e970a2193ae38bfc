// Package events bridges the in-process event bus to the external broker.
package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/IBM/sarama"

	"support-chat/internal/core/domain"
	coreevents "support-chat/internal/core/events"
)

const defaultTopic = "support-chat.events"

// KafkaRelay subscribes to the in-process bus and forwards every domain
// event to Kafka, keyed by room id so per-room ordering is preserved on a
// partition. The relay is optional: deployments without a broker simply
// never start one.
type KafkaRelay struct {
	producer sarama.AsyncProducer
	topic    string
	events   <-chan domain.Event
}

// NewKafkaRelay connects an async producer and subscribes it to the bus.
func NewKafkaRelay(brokers []string, topic string, bus *coreevents.Bus) (*KafkaRelay, error) {
	if topic == "" {
		topic = defaultTopic
	}

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Retry.Max = 3
	config.Producer.Return.Successes = false
	config.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokers, config)
	if err != nil {
		return nil, domain.Wrap(domain.KindTransient, "connect kafka producer", err)
	}

	return &KafkaRelay{
		producer: producer,
		topic:    topic,
		events:   bus.Subscribe(),
	}, nil
}

// Run forwards bus events to the broker until ctx is cancelled or the bus
// closes. Call as a goroutine.
func (r *KafkaRelay) Run(ctx context.Context) {
	slog.Info("kafka relay started", "topic", r.topic)

	for {
		select {
		case <-ctx.Done():
			slog.Info("kafka relay stopped")
			return
		case ev, ok := <-r.events:
			if !ok {
				slog.Info("event bus closed, kafka relay stopped")
				return
			}
			r.forward(ev)
		case err := <-r.producer.Errors():
			if err != nil {
				slog.Error("kafka publish failed", "error", err.Err, "topic", err.Msg.Topic)
			}
		}
	}
}

func (r *KafkaRelay) forward(ev domain.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		slog.Error("failed to marshal event for kafka", "error", err, "event_type", ev.Type)
		return
	}

	key := ev.RoomID
	if key == "" {
		key = ev.IdentityID
	}

	r.producer.Input() <- &sarama.ProducerMessage{
		Topic: r.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
	}
}

// Close shuts the producer down, flushing buffered messages.
func (r *KafkaRelay) Close() error {
	return r.producer.Close()
}
