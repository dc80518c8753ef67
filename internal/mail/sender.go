package mail

import "context"

// Sender отправляет письмо и возвращает id, присвоенный почтовым сервисом.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}
