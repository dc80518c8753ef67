package notify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedMessage: тело сообщения нельзя превратить в id заказа.
var ErrMalformedMessage = errors.New("malformed order message")

// OrderMessage — полезная нагрузка очереди подтверждений: {"order_id": n}.
type OrderMessage struct {
	OrderID int64 `json:"order_id"`
}

func EncodeOrderMessage(orderID int64) ([]byte, error) {
	return json.Marshal(OrderMessage{OrderID: orderID})
}

// DecodeOrderMessage достаёт order_id. Допускается целое число или строка с целым ("42");
// отсутствующее поле, null, дробные значения и не-объекты отклоняются.
func DecodeOrderMessage(body []byte) (int64, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return 0, fmt.Errorf("%w: body is not a JSON object", ErrMalformedMessage)
	}

	raw, ok := fields["order_id"]
	if !ok {
		return 0, fmt.Errorf("%w: order_id is missing", ErrMalformedMessage)
	}
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("%w: order_id is null", ErrMalformedMessage)
	}

	text := string(raw)
	if strings.HasPrefix(text, `"`) {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, fmt.Errorf("%w: order_id is not a string", ErrMalformedMessage)
		}
		text = strings.TrimSpace(text)
	}

	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: order_id %s is not an integer", ErrMalformedMessage, raw)
	}
	return id, nil
}
