package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/linemk/kronor-shop/internal/domain/models"
	"github.com/linemk/kronor-shop/internal/mail"
	"github.com/linemk/kronor-shop/internal/notify"
	"github.com/linemk/kronor-shop/internal/storage"
	"github.com/pkg/errors"
)

type Status string

const (
	StatusSent      Status = "sent"
	StatusMalformed Status = "malformed"
	StatusNotFound  Status = "not_found"
	StatusFailed    Status = "failed"
)

// Result — итог обработки одного сообщения. Trace заполняется только для failed.
type Result struct {
	Status    Status
	OrderID   int64
	MessageID string
	Error     string
	Trace     string
}

// Retryable сообщает, стоит ли оставить сообщение в очереди для повторной доставки.
func (r Result) Retryable() bool {
	return r.Status == StatusFailed
}

type OrderReader interface {
	GetOrderSummary(ctx context.Context, orderID int64) (*models.OrderSummary, error)
}

// Worker отправляет письмо-подтверждение по одному сообщению из очереди.
// Своих повторов нет: решение о повторе принимает транспорт по Result.Retryable.
type Worker struct {
	log      *slog.Logger
	orders   OrderReader
	sender   mail.Sender
	renderer *Renderer
	from     string
}

func New(log *slog.Logger, orders OrderReader, sender mail.Sender, from, team string) *Worker {
	return &Worker{
		log:      log,
		orders:   orders,
		sender:   sender,
		renderer: NewRenderer(team),
		from:     from,
	}
}

func (w *Worker) Handle(ctx context.Context, body []byte) Result {
	const op = "worker.Worker.Handle"
	logger := w.log.With(slog.String("op", op))

	orderID, messageID, err := w.process(ctx, body)
	res := Result{OrderID: orderID, MessageID: messageID}

	var (
		malformed *MalformedMessageError
		notFound  *OrderNotFoundError
	)
	switch {
	case err == nil:
		res.Status = StatusSent
		logger.Info("confirmation email sent", slog.Int64("orderID", orderID), slog.String("messageID", messageID))
	case errors.As(err, &malformed):
		res.Status = StatusMalformed
		res.Error = err.Error()
		logger.Warn("dropping malformed message", slog.Any("error", err))
	case errors.As(err, &notFound):
		res.Status = StatusNotFound
		res.Error = err.Error()
		logger.Warn("order not found", slog.Int64("orderID", orderID))
	default:
		res.Status = StatusFailed
		res.Error = err.Error()
		res.Trace = fmt.Sprintf("%+v", err)
		logger.Error("failed to send confirmation email",
			slog.Int64("orderID", orderID),
			slog.Any("error", err),
			slog.String("trace", res.Trace),
		)
	}
	return res
}

func (w *Worker) process(ctx context.Context, body []byte) (int64, string, error) {
	orderID, err := notify.DecodeOrderMessage(body)
	if err != nil {
		return 0, "", &MalformedMessageError{Body: string(body), Err: err}
	}

	summary, err := w.orders.GetOrderSummary(ctx, orderID)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return orderID, "", &OrderNotFoundError{OrderID: orderID}
		}
		return orderID, "", errors.Wrapf(err, "failed to load order %d", orderID)
	}

	email, err := w.renderer.Render(summary)
	if err != nil {
		return orderID, "", errors.Wrap(err, "failed to render email")
	}

	messageID, err := w.sender.Send(ctx, mail.Message{
		From:    w.from,
		To:      summary.UserEmail,
		Subject: email.Subject,
		Text:    email.Text,
		HTML:    email.HTML,
	})
	if err != nil {
		return orderID, "", errors.Wrapf(err, "failed to send email to %s", summary.UserEmail)
	}
	return orderID, messageID, nil
}
