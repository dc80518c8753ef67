package notify

import (
	"context"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"
)

// KafkaWriter: то, что нужно от *kafka.Writer.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher — альтернативный транспорт для окружений без SQS.
type KafkaPublisher struct {
	writer KafkaWriter
}

var _ Publisher = (*KafkaPublisher)(nil)

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaPublisher(writer KafkaWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

// Enqueue пишет сообщение с ключом = id заказа, чтобы повторы одного заказа шли в одну партицию.
func (p *KafkaPublisher) Enqueue(ctx context.Context, orderID int64) error {
	const op = "notify.KafkaPublisher.Enqueue"

	body, err := EncodeOrderMessage(orderID)
	if err != nil {
		return fmt.Errorf("%s: failed to encode message: %w", op, err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(orderID, 10)),
		Value: body,
	}); err != nil {
		return fmt.Errorf("%s: failed to write message: %w", op, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
