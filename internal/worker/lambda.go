package worker

import (
	"context"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
)

// LambdaHandler: вход для SQS-триггера Lambda. Функция должна быть настроена
// с ReportBatchItemFailures, тогда в очередь вернутся только сообщения с retryable ошибкой.
type LambdaHandler struct {
	log     *slog.Logger
	handler Handler
}

func NewLambdaHandler(log *slog.Logger, handler Handler) *LambdaHandler {
	return &LambdaHandler{log: log, handler: handler}
}

func (h *LambdaHandler) HandleSQSEvent(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	const op = "worker.LambdaHandler.HandleSQSEvent"

	var resp events.SQSEventResponse
	for _, record := range event.Records {
		res := h.handler.Handle(ctx, []byte(record.Body))
		if res.Retryable() {
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: record.MessageId,
			})
		}
	}

	h.log.Info("sqs batch processed",
		slog.String("op", op),
		slog.Int("records", len(event.Records)),
		slog.Int("failures", len(resp.BatchItemFailures)),
	)
	return resp, nil
}
