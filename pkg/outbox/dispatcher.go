package outbox

import (
	"context"
	"log/slog"
	"sort"

	"github.com/segmentio/kafka-go"

	"github.com/dmehra2102/burger-builder/pkg/tracing"
)

const EventTypeHeader = "event_type"

// ReservedHeader reports whether key is written by the dispatcher itself and
// so cannot be supplied through Event.Headers.
func ReservedHeader(key string) bool {
	switch key {
	case EventTypeHeader, tracing.TraceparentHeader, tracing.TracestateHeader:
		return true
	}
	return false
}

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Dispatcher struct {
	log      *slog.Logger
	producer Producer
	topic    string
}

func NewDispatcher(log *slog.Logger, producer Producer, topic string) *Dispatcher {
	return &Dispatcher{log: log, producer: producer, topic: topic}
}

// Message builds the Kafka record for an event, keyed by aggregate id so
// events of one aggregate stay ordered within a partition. Caller headers
// named like a reserved header are dropped.
func (d *Dispatcher) Message(event Event) kafka.Message {
	keys := make([]string, 0, len(event.Headers))
	for k := range event.Headers {
		if ReservedHeader(k) {
			d.log.Warn("reserved header dropped", "event_id", event.ID, "header", k)
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	headers := make([]kafka.Header, 0, len(keys)+2)
	for _, k := range keys {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(event.Headers[k])})
	}
	headers = append(headers, kafka.Header{Key: EventTypeHeader, Value: []byte(event.Type)})
	if event.Traceparent != "" {
		headers = append(headers, kafka.Header{Key: tracing.TraceparentHeader, Value: []byte(event.Traceparent)})
	}

	return kafka.Message{
		Topic:   d.topic,
		Key:     []byte(event.AggregateID),
		Value:   event.Payload,
		Headers: headers,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, event Event) error {
	if err := d.producer.WriteMessages(ctx, d.Message(event)); err != nil {
		d.log.Error("outbox dispatch failed", "event_id", event.ID, "err", err)
		return err
	}
	d.log.Info("outbox dispatched", "event_id", event.ID, "type", event.Type)
	return nil
}
