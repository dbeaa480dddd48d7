package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	builder "github.com/dmehra2102/burger-builder/internal/builder/domain"
	"github.com/dmehra2102/burger-builder/internal/kitchen/domain"
	"github.com/dmehra2102/burger-builder/pkg/outbox"
	"github.com/dmehra2102/burger-builder/pkg/tracing"
)

const (
	maxAttempts  = 3
	retryBackoff = 200 * time.Millisecond
)

type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Deduper interface {
	Key(topic string, partition int, offset int64) string
	Seen(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type Acceptor interface {
	Accept(ctx context.Context, ev builder.OrderPlaced) (domain.Ticket, error)
}

type Consumer struct {
	log    *slog.Logger
	reader Reader
	svc    Acceptor
	idem   Deduper
	tracer trace.Tracer
}

func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
}

func NewConsumer(log *slog.Logger, reader Reader, svc Acceptor, idem Deduper) *Consumer {
	return &Consumer{
		log:    log,
		reader: reader,
		svc:    svc,
		idem:   idem,
		tracer: otel.Tracer("kitchen-consumer"),
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if err := c.Handle(ctx, msg); err != nil {
			return err
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error("commit failed", "offset", msg.Offset, "err", err)
		}
	}
}

// Handle processes one message. Poison messages are logged and dropped so
// the partition keeps moving. An error means the ticket could not be stored
// and the message must stay uncommitted.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) error {
	if t := tracing.HeaderValue(msg.Headers, outbox.EventTypeHeader); t != "" && t != builder.EventOrderPlaced {
		c.log.Debug("event ignored", "type", t, "offset", msg.Offset)
		return nil
	}

	key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
	seen, err := c.idem.Seen(ctx, key)
	if err != nil {
		// Without the guard the upsert still keeps redelivery harmless.
		c.log.Error("idempotency check failed", "key", key, "err", err)
	} else if seen {
		c.log.Info("duplicate message skipped", "key", key)
		return nil
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeOrderPlaced")
	defer span.End()

	var ev builder.OrderPlaced
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.log.Error("unmarshal failed", "offset", msg.Offset, "err", err)
		span.SetStatus(codes.Error, "bad payload")
		return nil
	}
	span.SetAttributes(attribute.String("order.id", ev.OrderID))

	for attempt := 1; ; attempt++ {
		_, err = c.svc.Accept(msgCtx, ev)
		if err == nil {
			return nil
		}
		if domain.Rejected(err) {
			c.log.Warn("order rejected", "order_id", ev.OrderID, "err", err)
			span.SetStatus(codes.Error, err.Error())
			return nil
		}
		if attempt == maxAttempts || ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
		case <-time.After(retryBackoff * time.Duration(attempt)):
		}
	}

	c.log.Error("ticket not stored", "order_id", ev.OrderID, "err", err)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if rerr := c.idem.Release(ctx, key); rerr != nil {
		c.log.Warn("idempotency release failed", "key", key, "err", rerr)
	}
	return err
}
