package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/linemk/kronor-shop/internal/notify"
)

// Handler обрабатывает тело одного сообщения.
type Handler interface {
	Handle(ctx context.Context, body []byte) Result
}

type SQSOptions struct {
	MaxMessages       int32
	WaitTime          time.Duration
	VisibilityTimeout time.Duration
	// пауза после ошибки ReceiveMessage
	ErrorBackoff time.Duration
}

const maxSQSWaitTime = 20 * time.Second

func (o SQSOptions) withDefaults() SQSOptions {
	if o.MaxMessages <= 0 || o.MaxMessages > 10 {
		o.MaxMessages = 10
	}
	// SQS принимает WaitTimeSeconds от 0 до 20
	if o.WaitTime <= 0 || o.WaitTime > maxSQSWaitTime {
		o.WaitTime = maxSQSWaitTime
	}
	if o.VisibilityTimeout <= 0 {
		o.VisibilityTimeout = 30 * time.Second
	}
	if o.ErrorBackoff <= 0 {
		o.ErrorBackoff = time.Second
	}
	return o
}

// SQSConsumer делает long polling очереди подтверждений.
// Успешные и безнадёжные сообщения удаляются; временные ошибки остаются в очереди
// и вернутся после visibility timeout (дальше работает redrive policy очереди).
type SQSConsumer struct {
	log      *slog.Logger
	client   notify.SQSAPI
	queueURL string
	handler  Handler
	opts     SQSOptions
}

func NewSQSConsumer(log *slog.Logger, client notify.SQSAPI, queueURL string, handler Handler, opts SQSOptions) *SQSConsumer {
	return &SQSConsumer{
		log:      log,
		client:   client,
		queueURL: queueURL,
		handler:  handler,
		opts:     opts.withDefaults(),
	}
}

// Run крутится до отмены контекста.
func (c *SQSConsumer) Run(ctx context.Context) error {
	const op = "worker.SQSConsumer.Run"
	logger := c.log.With(slog.String("op", op), slog.String("queue", c.queueURL))
	logger.Info("starting SQS polling")

	for {
		if err := ctx.Err(); err != nil {
			logger.Info("SQS polling stopped")
			return nil
		}

		if _, err := c.PollOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				continue
			}
			logger.Error("error polling SQS", slog.Any("error", err))
			select {
			case <-ctx.Done():
			case <-time.After(c.opts.ErrorBackoff):
			}
		}
	}
}

// PollOnce выполняет один ReceiveMessage и обрабатывает полученную пачку.
func (c *SQSConsumer) PollOnce(ctx context.Context) ([]Result, error) {
	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: c.opts.MaxMessages,
		WaitTimeSeconds:     int32(c.opts.WaitTime / time.Second),
		VisibilityTimeout:   int32(c.opts.VisibilityTimeout / time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to receive messages: %w", err)
	}

	results := make([]Result, 0, len(out.Messages))
	for _, msg := range out.Messages {
		results = append(results, c.handle(ctx, msg))
	}
	return results, nil
}

func (c *SQSConsumer) handle(ctx context.Context, msg types.Message) Result {
	res := c.handler.Handle(ctx, []byte(aws.ToString(msg.Body)))
	if res.Retryable() {
		c.log.Warn("leaving message for redelivery",
			slog.String("sqsMessageID", aws.ToString(msg.MessageId)),
			slog.String("status", string(res.Status)),
		)
		return res
	}

	if _, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: msg.ReceiptHandle,
	}); err != nil {
		c.log.Error("failed to delete message",
			slog.String("sqsMessageID", aws.ToString(msg.MessageId)),
			slog.Any("error", err),
		)
	}
	return res
}
