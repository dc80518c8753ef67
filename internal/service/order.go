package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/linemk/kronor-shop/internal/domain/models"
	"github.com/linemk/kronor-shop/internal/storage"
	"github.com/shopspring/decimal"
)

// OrderItem — одна пара (товар, количество) из запроса на покупку.
type OrderItem struct {
	ProductID int64
	Quantity  int
}

// PlaceOrderResult возвращается после коммита заказа.
type PlaceOrderResult struct {
	OrderID     int64
	TotalAmount decimal.Decimal
}

// OrderNotifier ставит в очередь задачу на письмо-подтверждение.
type OrderNotifier interface {
	Enqueue(ctx context.Context, orderID int64) error
}

type OrderService interface {
	PlaceOrder(ctx context.Context, userSub string, items []OrderItem) (*PlaceOrderResult, error)
	ListUserOrders(ctx context.Context, userSub string) ([]models.UserOrder, error)
}

type orderService struct {
	log             *slog.Logger
	db              *sql.DB
	userRepo        storage.UserStorage
	productRepo     storage.ProductStorage
	orderRepo       storage.OrderStorage
	notifier        OrderNotifier
	dispatchTimeout time.Duration
}

func NewOrderService(
	log *slog.Logger,
	db *sql.DB,
	userRepo storage.UserStorage,
	productRepo storage.ProductStorage,
	orderRepo storage.OrderStorage,
	notifier OrderNotifier,
	dispatchTimeout time.Duration,
) OrderService {
	if dispatchTimeout <= 0 {
		dispatchTimeout = 5 * time.Second
	}
	return &orderService{
		log:             log,
		db:              db,
		userRepo:        userRepo,
		productRepo:     productRepo,
		orderRepo:       orderRepo,
		notifier:        notifier,
		dispatchTimeout: dispatchTimeout,
	}
}

// PlaceOrder оформляет заказ одной транзакцией: проверка остатков, списание,
// запись заказа и позиций. Любая ошибка откатывает всё.
// После коммита заказ отправляется в очередь уведомлений; ошибка отправки заказ не отменяет.
func (s *orderService) PlaceOrder(ctx context.Context, userSub string, items []OrderItem) (*PlaceOrderResult, error) {
	const op = "service.OrderService.PlaceOrder"
	logger := s.log.With(slog.String("op", op), slog.String("userSub", userSub), slog.Int("items", len(items)))

	if err := validateOrder(userSub, items); err != nil {
		logger.Warn("invalid order request", slog.Any("error", err))
		return nil, err
	}

	logger.Info("starting order transaction")
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, &DependencyError{Op: op, Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}

	orderID, total, err := s.placeOrderTx(ctx, tx, userSub, items)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		if errors.Is(err, ErrDependency) {
			logger.Error("order transaction failed", slog.Any("error", err))
		} else {
			logger.Warn("order rejected", slog.Any("error", err))
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, &DependencyError{Op: op, Err: fmt.Errorf("failed to commit transaction: %w", err)}
	}

	logger.Info("order placed", slog.Int64("orderID", orderID), slog.String("total", total.StringFixed(2)))
	s.dispatch(ctx, logger, orderID)

	return &PlaceOrderResult{OrderID: orderID, TotalAmount: total}, nil
}

func (s *orderService) placeOrderTx(ctx context.Context, tx *sql.Tx, userSub string, items []OrderItem) (int64, decimal.Decimal, error) {
	const op = "service.OrderService.placeOrderTx"

	user, err := s.userRepo.GetUserBySubTx(ctx, tx, userSub)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return 0, decimal.Zero, &NotFoundError{Entity: "user", Key: userSub}
		}
		return 0, decimal.Zero, &DependencyError{Op: op, Err: fmt.Errorf("failed to get user: %w", err)}
	}

	// блокируем все строки заказа до первой проверки
	products, err := s.productRepo.LockProductsTx(ctx, tx, distinctProductIDs(items))
	if err != nil {
		return 0, decimal.Zero, &DependencyError{Op: op, Err: err}
	}
	for _, item := range items {
		if _, ok := products[item.ProductID]; !ok {
			return 0, decimal.Zero, &NotFoundError{Entity: "product", Key: item.ProductID}
		}
	}

	// повторяющиеся pid не склеиваются: на каждое вхождение отдельное списание и отдельная позиция
	total := decimal.Zero
	for _, item := range items {
		product := products[item.ProductID]
		if product.Inventory < item.Quantity {
			return 0, decimal.Zero, insufficient(product, item.Quantity)
		}

		remaining, err := s.productRepo.DecrementInventoryTx(ctx, tx, product.ID, item.Quantity)
		if err != nil {
			if errors.Is(err, storage.ErrInsufficientInventory) {
				return 0, decimal.Zero, insufficient(product, item.Quantity)
			}
			return 0, decimal.Zero, &DependencyError{Op: op, Err: err}
		}
		product.Inventory = remaining

		total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	orderID, err := s.orderRepo.CreateOrderTx(ctx, tx, user.ID, total)
	if err != nil {
		return 0, decimal.Zero, &DependencyError{Op: op, Err: err}
	}
	for _, item := range items {
		if err := s.orderRepo.CreateOrderLineTx(ctx, tx, orderID, item.ProductID, item.Quantity); err != nil {
			return 0, decimal.Zero, &DependencyError{Op: op, Err: err}
		}
	}

	return orderID, total, nil
}

// dispatch: fire-and-forget после коммита. Контекст запроса отвязан от отмены,
// чтобы разрыв соединения клиента не срывал постановку в очередь.
func (s *orderService) dispatch(ctx context.Context, logger *slog.Logger, orderID int64) {
	if s.notifier == nil {
		logger.Warn("order notifier is not configured", slog.Int64("orderID", orderID))
		return
	}

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.dispatchTimeout)
	defer cancel()

	if err := s.notifier.Enqueue(dctx, orderID); err != nil {
		logger.Warn("failed to enqueue order confirmation", slog.Int64("orderID", orderID), slog.Any("error", err))
		return
	}
	logger.Info("order confirmation enqueued", slog.Int64("orderID", orderID))
}

// ListUserOrders возвращает заказы пользователя с товарами.
func (s *orderService) ListUserOrders(ctx context.Context, userSub string) ([]models.UserOrder, error) {
	const op = "service.OrderService.ListUserOrders"
	logger := s.log.With(slog.String("op", op), slog.String("userSub", userSub))

	user, err := s.userRepo.GetUserBySub(ctx, userSub)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, &NotFoundError{Entity: "user", Key: userSub}
		}
		logger.Error("failed to get user", slog.Any("error", err))
		return nil, &DependencyError{Op: op, Err: err}
	}

	orders, err := s.orderRepo.GetOrdersByUserID(ctx, user.ID)
	if err != nil {
		logger.Error("failed to get orders", slog.Any("error", err))
		return nil, &DependencyError{Op: op, Err: err}
	}
	return orders, nil
}

func validateOrder(userSub string, items []OrderItem) error {
	if userSub == "" || len(items) == 0 {
		return &ValidationError{Msg: "Missing required parameters (user_sub or products)"}
	}
	for _, item := range items {
		if item.ProductID <= 0 || item.Quantity < 1 {
			return &ValidationError{Msg: fmt.Sprintf("Invalid product or quantity: {pid: %d, quantity: %d}", item.ProductID, item.Quantity)}
		}
	}
	return nil
}

func distinctProductIDs(items []OrderItem) []int64 {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

func insufficient(p *models.Product, requested int) error {
	return &InsufficientInventoryError{
		ProductID: p.ID,
		Name:      p.Name,
		Available: p.Inventory,
		Requested: requested,
	}
}
