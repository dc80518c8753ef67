package notify

import "context"

// Publisher передаёт id закоммиченного заказа в очередь подтверждений.
// Доставка at-least-once: получатель может увидеть одно сообщение несколько раз.
type Publisher interface {
	Enqueue(ctx context.Context, orderID int64) error
}
