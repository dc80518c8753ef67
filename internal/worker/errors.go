package worker

import "fmt"

// MalformedMessageError — в сообщении нет корректного order_id. Повтор не поможет.
type MalformedMessageError struct {
	Body string
	Err  error
}

func (e *MalformedMessageError) Error() string {
	return fmt.Sprintf("malformed message %q: %v", e.Body, e.Err)
}

func (e *MalformedMessageError) Unwrap() error { return e.Err }

// OrderNotFoundError — заказа из сообщения нет (или у него нет позиций).
type OrderNotFoundError struct {
	OrderID int64
}

func (e *OrderNotFoundError) Error() string {
	return fmt.Sprintf("no data found for order ID %d", e.OrderID)
}
