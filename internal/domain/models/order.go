package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order представляет заказ, созданный одной успешной покупкой
type Order struct {
	ID          int64
	UserID      int64
	TotalAmount decimal.Decimal // сумма price × quantity по всем позициям
	CreatedAt   time.Time
}

// OrderLine одна позиция заказа (таблица order_products)
type OrderLine struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int
}

// OrderSummary — данные заказа для письма-подтверждения.
// Собирается одним JOIN по orders, users, order_products и products.
type OrderSummary struct {
	OrderID     int64
	UserEmail   string
	UserName    string
	TotalAmount decimal.Decimal
	Items       []SummaryItem
}

type SummaryItem struct {
	Name      string
	Price     decimal.Decimal
	ThumbLink string
	Quantity  int
}

// LineTotal возвращает price × quantity
func (i SummaryItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// UserOrder — заказ пользователя вместе с товарами, для GET /user-orders
type UserOrder struct {
	OrderID  int64              `json:"order_id"`
	Products []UserOrderProduct `json:"products"`
}

type UserOrderProduct struct {
	ProductID int64           `json:"pid"`
	Category  string          `json:"category"`
	Gender    string          `json:"gender"`
	Name      string          `json:"productName"`
	Size      string          `json:"size"`
	Price     decimal.Decimal `json:"price"`
	ThumbLink string          `json:"thumbLink"`
	Quantity  int             `json:"quantity"`
}
