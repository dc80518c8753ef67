package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
		MaxWait:        time.Second,
	})
}

// DeadLetterWriter принимает сообщения, которые не удалось обработать.
type DeadLetterWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaConsumer читает топик в consumer group. Оффсет коммитится после каждого сообщения.
// У Kafka нет поштучной повторной доставки, поэтому failed сначала уходит в dead-letter топик;
// если записать туда не удалось, оффсет не коммитится и консьюмер останавливается.
type KafkaConsumer struct {
	log        *slog.Logger
	reader     KafkaReader
	handler    Handler
	deadLetter DeadLetterWriter
}

// NewKafkaConsumer: deadLetter может быть nil, тогда failed только логируется.
func NewKafkaConsumer(log *slog.Logger, reader KafkaReader, handler Handler, deadLetter DeadLetterWriter) *KafkaConsumer {
	return &KafkaConsumer{log: log, reader: reader, handler: handler, deadLetter: deadLetter}
}

func (c *KafkaConsumer) Run(ctx context.Context) error {
	const op = "worker.KafkaConsumer.Run"
	logger := c.log.With(slog.String("op", op))
	logger.Info("starting kafka consumer")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				logger.Info("kafka consumer stopped")
				return nil
			}
			return fmt.Errorf("%s: failed to fetch message: %w", op, err)
		}

		res := c.handler.Handle(ctx, msg.Value)
		if res.Retryable() {
			if err := c.sendToDeadLetter(ctx, logger, msg, res); err != nil {
				return fmt.Errorf("%s: offset %d: %w", op, msg.Offset, err)
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%s: failed to commit offset %d: %w", op, msg.Offset, err)
		}
	}
}

func (c *KafkaConsumer) sendToDeadLetter(ctx context.Context, logger *slog.Logger, msg kafka.Message, res Result) error {
	logger = logger.With(
		slog.Int64("orderID", res.OrderID),
		slog.Int64("offset", msg.Offset),
		slog.String("error", res.Error),
	)
	if c.deadLetter == nil {
		logger.Error("confirmation failed, dead-letter topic is not configured")
		return nil
	}

	dead := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(msg.Headers,
			kafka.Header{Key: "x-error", Value: []byte(res.Error)},
			kafka.Header{Key: "x-source-topic", Value: []byte(msg.Topic)},
			kafka.Header{Key: "x-source-offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		),
	}
	if err := c.deadLetter.WriteMessages(ctx, dead); err != nil {
		logger.Error("failed to write to dead-letter topic", slog.Any("writeError", err))
		return fmt.Errorf("failed to write to dead-letter topic: %w", err)
	}
	logger.Warn("confirmation failed, message moved to dead-letter topic")
	return nil
}
