package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/linemk/kronor-shop/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/kronor-shop/internal/service"
)

// TrackUserRequest — тело POST /users. Пустые поля берутся из токена.
type TrackUserRequest struct {
	Sub   string `json:"sub"`
	Email string `json:"email" validate:"omitempty,email"`
	Name  string `json:"name"`
}

type TrackUserResponse struct {
	Message string `json:"message"`
	Sub     string `json:"sub"`
}

// TrackUserHandler обрабатывает запрос POST /users
func TrackUserHandler(log *slog.Logger, userService service.UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.TrackUserHandler"
		logger := log.With(slog.String("op", op))

		// claims кладёт JWT middleware
		claims, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("claims not found in context")
			writeError(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req TrackUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			writeError(w, logger, http.StatusBadRequest, "invalid request")
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			writeError(w, logger, http.StatusBadRequest, "validation error")
			return
		}

		if req.Sub != "" && req.Sub != claims.Subject {
			logger.Warn("sub does not match token", slog.String("sub", req.Sub))
			writeError(w, logger, http.StatusForbidden, "sub does not match token")
			return
		}

		email, name := req.Email, req.Name
		if email == "" {
			email = claims.Email
		}
		if name == "" {
			name = claims.Name
		}

		user, err := userService.TrackUser(r.Context(), claims.Subject, email, name)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, TrackUserResponse{
			Message: "User stored/updated successfully",
			Sub:     user.Sub,
		})
	}
}
