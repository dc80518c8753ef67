package service

import (
	"context"
	"log/slog"

	"github.com/linemk/kronor-shop/internal/domain/models"
	"github.com/linemk/kronor-shop/internal/storage"
)

type UserService interface {
	// TrackUser сохраняет пользователя из токена при первом входе или обновляет его данные.
	TrackUser(ctx context.Context, sub, email, name string) (*models.User, error)
}

type userService struct {
	log  *slog.Logger
	repo storage.UserStorage
}

func NewUserService(log *slog.Logger, repo storage.UserStorage) UserService {
	return &userService{log: log, repo: repo}
}

func (s *userService) TrackUser(ctx context.Context, sub, email, name string) (*models.User, error) {
	const op = "service.UserService.TrackUser"
	logger := s.log.With(slog.String("op", op), slog.String("sub", sub))

	if sub == "" {
		return nil, &ValidationError{Msg: "Missing user sub"}
	}

	user, err := s.repo.UpsertUser(ctx, &models.User{Sub: sub, Email: email, Name: name})
	if err != nil {
		logger.Error("failed to upsert user", slog.Any("error", err))
		return nil, &DependencyError{Op: op, Err: err}
	}

	logger.Info("user stored", slog.Int64("userID", user.ID))
	return user, nil
}
