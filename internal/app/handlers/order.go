package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/kronor-shop/internal/service"
)

const placeOrderMessage = "Order placed successfully. Confirmation email processing initiated."

// PlaceOrderRequest — тело POST /place-order.
type PlaceOrderRequest struct {
	UserSub  string              `json:"user_sub" validate:"required"`
	Products []PlaceOrderProduct `json:"products" validate:"required,min=1"`
}

// PlaceOrderProduct: позиция запроса, quantity по умолчанию 1.
type PlaceOrderProduct struct {
	PID      int64    `json:"pid"`
	Quantity Quantity `json:"quantity"`
}

// Quantity различает отсутствующее поле и явный null.
type Quantity struct {
	Value int
	Set   bool
	Null  bool
}

func (q *Quantity) UnmarshalJSON(data []byte) error {
	q.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		q.Null = true
		return nil
	}
	return json.Unmarshal(data, &q.Value)
}

type PlaceOrderResponse struct {
	Message     string      `json:"message"`
	OrderID     int64       `json:"order_id"`
	TotalAmount json.Number `json:"total_amount"`
}

// PlaceOrderHandler обрабатывает запрос POST /place-order
func PlaceOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.PlaceOrderHandler"
		logger := log.With(slog.String("op", op))

		var req PlaceOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) && typeErr.Field == "products" {
				writeError(w, logger, http.StatusBadRequest, "'products' must be a list of objects with pid and quantity")
				return
			}
			writeError(w, logger, http.StatusBadRequest, "invalid request")
			return
		}

		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			writeError(w, logger, http.StatusBadRequest, "Missing required parameters (user_sub or products)")
			return
		}

		items := make([]service.OrderItem, 0, len(req.Products))
		for _, p := range req.Products {
			if p.Quantity.Null {
				logger.Warn("invalid request: null quantity", slog.Int64("pid", p.PID))
				writeError(w, logger, http.StatusBadRequest, fmt.Sprintf("Invalid product or quantity: {pid: %d, quantity: null}", p.PID))
				return
			}
			qty := 1
			if p.Quantity.Set {
				qty = p.Quantity.Value
			}
			items = append(items, service.OrderItem{ProductID: p.PID, Quantity: qty})
		}

		res, err := orderService.PlaceOrder(r.Context(), req.UserSub, items)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusCreated, PlaceOrderResponse{
			Message:     placeOrderMessage,
			OrderID:     res.OrderID,
			TotalAmount: json.Number(res.TotalAmount.StringFixed(2)),
		})
	}
}

// UserOrdersHandler обрабатывает запрос GET /user-orders/{user_sub}
func UserOrdersHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UserOrdersHandler"
		logger := log.With(slog.String("op", op))

		userSub := chi.URLParam(r, "user_sub")
		if userSub == "" {
			writeError(w, logger, http.StatusBadRequest, "user_sub parameter is required")
			return
		}

		orders, err := orderService.ListUserOrders(r.Context(), userSub)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, orders)
	}
}
