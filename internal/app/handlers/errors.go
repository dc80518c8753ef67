package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/linemk/kronor-shop/internal/service"
)

var validate = validator.New()

// ErrorResponse — тело любого ответа с ошибкой.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, ErrorResponse{Error: msg})
}

// writeServiceError переводит ошибку сервиса в HTTP статус.
// Отказы зависимостей наружу не раскрываются.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrInsufficientInventory):
		writeError(w, logger, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeError(w, logger, http.StatusNotFound, err.Error())
	default:
		logger.Error("request failed", slog.Any("error", err))
		writeError(w, logger, http.StatusInternalServerError, "internal server error")
	}
}
