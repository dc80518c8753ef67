package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/linemk/kronor-shop/internal/domain/models"
)

var ErrUserNotFound = errors.New("user not found")

type UserStorage interface {
	GetUserBySub(ctx context.Context, sub string) (*models.User, error)
	GetUserBySubTx(ctx context.Context, tx *sql.Tx, sub string) (*models.User, error)
	UpsertUser(ctx context.Context, user *models.User) (*models.User, error)
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *userRepository {
	return &userRepository{db: db}
}

// получение пользователя по sub из токена
func (r *userRepository) GetUserBySub(ctx context.Context, sub string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, "SELECT id, sub, COALESCE(email, ''), COALESCE(name, '') FROM users WHERE sub = $1", sub)
	return scanUser(row)
}

// GetUserBySubTx то же самое, но внутри транзакции оформления заказа
func (r *userRepository) GetUserBySubTx(ctx context.Context, tx *sql.Tx, sub string) (*models.User, error) {
	row := tx.QueryRowContext(ctx, "SELECT id, sub, COALESCE(email, ''), COALESCE(name, '') FROM users WHERE sub = $1", sub)
	return scanUser(row)
}

// UpsertUser создаёт пользователя при первом обращении или обновляет email и имя
func (r *userRepository) UpsertUser(ctx context.Context, user *models.User) (*models.User, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (sub, email, name) VALUES ($1, $2, $3)
		 ON CONFLICT (sub) DO UPDATE SET email = EXCLUDED.email, name = EXCLUDED.name
		 RETURNING id`,
		user.Sub, user.Email, user.Name,
	).Scan(&id)
	if err != nil {
		return nil, err
	}
	user.ID = id
	return user, nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	if err := row.Scan(&user.ID, &user.Sub, &user.Email, &user.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
