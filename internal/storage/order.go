package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linemk/kronor-shop/internal/domain/models"
	"github.com/shopspring/decimal"
)

var ErrOrderNotFound = errors.New("order not found")

// OrderStorage описывает методы для работы с заказами.
type OrderStorage interface {
	// CreateOrderTx вставляет заказ в таблицу orders внутри транзакции и возвращает его id.
	CreateOrderTx(ctx context.Context, tx *sql.Tx, userID int64, totalAmount decimal.Decimal) (int64, error)
	// CreateOrderLineTx вставляет позицию заказа в order_products.
	CreateOrderLineTx(ctx context.Context, tx *sql.Tx, orderID, productID int64, quantity int) error
	// GetOrdersByUserID возвращает заказы пользователя вместе с товарами.
	GetOrdersByUserID(ctx context.Context, userID int64) ([]models.UserOrder, error)
	// GetOrderSummary собирает данные для письма: пользователь, позиции, итог.
	GetOrderSummary(ctx context.Context, orderID int64) (*models.OrderSummary, error)
}

// orderRepository — конкретная реализация OrderStorage.
type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт новый репозиторий заказов.
func NewOrderRepository(db *sql.DB) OrderStorage {
	return &orderRepository{db: db}
}

func (r *orderRepository) CreateOrderTx(ctx context.Context, tx *sql.Tx, userID int64, totalAmount decimal.Decimal) (int64, error) {
	query := `INSERT INTO orders (user_id, total_amount, created_at) VALUES ($1, $2, NOW()) RETURNING id`
	var id int64
	if err := tx.QueryRowContext(ctx, query, userID, totalAmount).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to create order: %w", err)
	}
	return id, nil
}

func (r *orderRepository) CreateOrderLineTx(ctx context.Context, tx *sql.Tx, orderID, productID int64, quantity int) error {
	query := `INSERT INTO order_products (order_id, product_id, quantity) VALUES ($1, $2, $3)`
	if _, err := tx.ExecContext(ctx, query, orderID, productID, quantity); err != nil {
		return fmt.Errorf("failed to create order line: %w", err)
	}
	return nil
}

// GetOrdersByUserID возвращает заказы пользователя одним JOIN, сгруппированные по заказу.
// Заказы без позиций в выборку не попадают.
func (r *orderRepository) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.UserOrder, error) {
	query := `
		SELECT o.id, p.id, p.category, p.gender, p.name, p.size, p.price, COALESCE(p.thumb_link, ''), op.quantity
		FROM orders o
		JOIN order_products op ON op.order_id = o.id
		JOIN products p ON p.id = op.product_id
		WHERE o.user_id = $1
		ORDER BY o.id, op.id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user orders: %w", err)
	}
	defer rows.Close()

	orders := make([]models.UserOrder, 0)
	for rows.Next() {
		var orderID int64
		var p models.UserOrderProduct
		if err := rows.Scan(&orderID, &p.ProductID, &p.Category, &p.Gender, &p.Name, &p.Size, &p.Price, &p.ThumbLink, &p.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan user order: %w", err)
		}
		if n := len(orders); n == 0 || orders[n-1].OrderID != orderID {
			orders = append(orders, models.UserOrder{OrderID: orderID})
		}
		last := &orders[len(orders)-1]
		last.Products = append(last.Products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) GetOrderSummary(ctx context.Context, orderID int64) (*models.OrderSummary, error) {
	query := `
		SELECT o.id, COALESCE(u.email, ''), COALESCE(u.name, ''), p.name, p.price, COALESCE(p.thumb_link, ''), op.quantity, o.total_amount
		FROM orders o
		JOIN users u ON o.user_id = u.id
		JOIN order_products op ON o.id = op.order_id
		JOIN products p ON op.product_id = p.id
		WHERE o.id = $1
		ORDER BY p.name`
	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order summary: %w", err)
	}
	defer rows.Close()

	var summary *models.OrderSummary
	for rows.Next() {
		var (
			id    int64
			email string
			name  string
			item  models.SummaryItem
			total decimal.Decimal
		)
		if err := rows.Scan(&id, &email, &name, &item.Name, &item.Price, &item.ThumbLink, &item.Quantity, &total); err != nil {
			return nil, fmt.Errorf("failed to scan order summary: %w", err)
		}
		if summary == nil {
			summary = &models.OrderSummary{
				OrderID:     id,
				UserEmail:   email,
				UserName:    name,
				TotalAmount: total,
			}
		}
		summary.Items = append(summary.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, ErrOrderNotFound
	}
	return summary, nil
}
