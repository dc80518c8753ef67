package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQSAPI: подмножество клиента SQS, которым пользуются издатель и консьюмер.
type SQSAPI interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// QueueURL возвращает адрес очереди: заданный явно или полученный по имени через GetQueueUrl.
func QueueURL(ctx context.Context, client SQSAPI, name, url string) (string, error) {
	if url != "" {
		return url, nil
	}
	out, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	if err != nil {
		return "", fmt.Errorf("failed to get queue URL for %q: %w", name, err)
	}
	return aws.ToString(out.QueueUrl), nil
}

type SQSPublisher struct {
	log       *slog.Logger
	client    SQSAPI
	queueName string

	mu       sync.Mutex
	queueURL string
}

var _ Publisher = (*SQSPublisher)(nil)

// NewSQSPublisher создаёт издателя. Пустой queueURL будет разрешён по имени при первой отправке.
func NewSQSPublisher(log *slog.Logger, client SQSAPI, queueName, queueURL string) *SQSPublisher {
	return &SQSPublisher{log: log, client: client, queueName: queueName, queueURL: queueURL}
}

func (p *SQSPublisher) url(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.queueURL != "" {
		return p.queueURL, nil
	}
	url, err := QueueURL(ctx, p.client, p.queueName, "")
	if err != nil {
		return "", err
	}
	p.queueURL = url
	return url, nil
}

func (p *SQSPublisher) Enqueue(ctx context.Context, orderID int64) error {
	const op = "notify.SQSPublisher.Enqueue"

	body, err := EncodeOrderMessage(orderID)
	if err != nil {
		return fmt.Errorf("%s: failed to encode message: %w", op, err)
	}
	url, err := p.url(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	out, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(url),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("%s: failed to send message: %w", op, err)
	}

	p.log.Debug("order message sent",
		slog.String("op", op),
		slog.Int64("orderID", orderID),
		slog.String("messageID", aws.ToString(out.MessageId)),
	)
	return nil
}
