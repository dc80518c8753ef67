package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/linemk/kronor-shop/internal/domain/models"
)

var (
	ErrProductNotFound       = errors.New("product not found")
	ErrInsufficientInventory = errors.New("insufficient inventory")
)

// код ошибки postgres для нарушения CHECK (inventory >= 0)
const pqCheckViolation = "23514"

const productColumns = `id, category, gender, name, size, price, COALESCE(image_link, ''), COALESCE(thumb_link, ''), inventory, description`

// ProductStorage описывает методы для работы с каталогом товаров.
type ProductStorage interface {
	ListProducts(ctx context.Context) ([]*models.Product, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error)
	// LockProductsTx блокирует строки товаров до конца транзакции.
	LockProductsTx(ctx context.Context, tx *sql.Tx, ids []int64) (map[int64]*models.Product, error)
	// DecrementInventoryTx списывает остаток, только если его хватает.
	DecrementInventoryTx(ctx context.Context, tx *sql.Tx, id int64, quantity int) (int, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт новый репозиторий товаров.
func NewProductRepository(db *sql.DB) ProductStorage {
	return &productRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*models.Product, error) {
	p := &models.Product{}
	err := row.Scan(&p.ID, &p.Category, &p.Gender, &p.Name, &p.Size, &p.Price,
		&p.ImageLink, &p.ThumbLink, &p.Inventory, &p.Description)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *productRepository) ListProducts(ctx context.Context) ([]*models.Product, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+productColumns+" FROM products ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]*models.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *productRepository) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *productRepository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	query := `INSERT INTO products (category, gender, name, size, price, image_link, thumb_link, inventory, description)
	          VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9) RETURNING id`
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		product.Category, product.Gender, product.Name, product.Size, product.Price,
		product.ImageLink, product.ThumbLink, product.Inventory, product.Description,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	product.ID = id
	return product, nil
}

// LockProductsTx берёт FOR UPDATE по всем товарам заказа сразу, в порядке id,
// чтобы параллельные заказы с пересекающимися товарами не ловили deadlock.
// Отсутствующие id просто не попадают в результат.
func (r *productRepository) LockProductsTx(ctx context.Context, tx *sql.Tx, ids []int64) (map[int64]*models.Product, error) {
	query := "SELECT " + productColumns + " FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE"
	rows, err := tx.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
	}
	defer rows.Close()

	locked := make(map[int64]*models.Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		locked[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return locked, nil
}

// DecrementInventoryTx: условное списание, строка обновляется только при inventory >= quantity.
// Возвращает остаток после списания.
func (r *productRepository) DecrementInventoryTx(ctx context.Context, tx *sql.Tx, id int64, quantity int) (int, error) {
	query := `UPDATE products SET inventory = inventory - $1 WHERE id = $2 AND inventory >= $1 RETURNING inventory`
	var remaining int
	if err := tx.QueryRowContext(ctx, query, quantity, id).Scan(&remaining); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrInsufficientInventory
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqCheckViolation {
			return 0, ErrInsufficientInventory
		}
		return 0, fmt.Errorf("failed to decrement inventory: %w", err)
	}
	return remaining, nil
}
