package service_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"sort"
	"sync"

	"github.com/linemk/kronor-shop/internal/domain/models"
	"github.com/linemk/kronor-shop/internal/storage"
	"github.com/shopspring/decimal"
)

type fakeUserRepo struct {
	users     map[string]*models.User // по sub
	upsertErr error
}

var _ storage.UserStorage = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (f *fakeUserRepo) GetUserBySub(ctx context.Context, sub string) (*models.User, error) {
	user, ok := f.users[sub]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetUserBySubTx(ctx context.Context, tx *sql.Tx, sub string) (*models.User, error) {
	return f.GetUserBySub(ctx, sub)
}

func (f *fakeUserRepo) UpsertUser(ctx context.Context, user *models.User) (*models.User, error) {
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	if existing, ok := f.users[user.Sub]; ok {
		existing.Email = user.Email
		existing.Name = user.Name
		return existing, nil
	}
	user.ID = int64(len(f.users) + 1)
	f.users[user.Sub] = user
	return user, nil
}

// fakeProductRepo списывает остаток под мьютексом, как условный UPDATE в postgres.
type fakeProductRepo struct {
	mu        sync.Mutex
	products  map[int64]*models.Product
	createErr error
}

var _ storage.ProductStorage = (*fakeProductRepo)(nil)

func newFakeProductRepo(products ...*models.Product) *fakeProductRepo {
	f := &fakeProductRepo{products: make(map[int64]*models.Product)}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeProductRepo) inventory(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].Inventory
}

func (f *fakeProductRepo) ListProducts(ctx context.Context) ([]*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Product, 0, len(f.products))
	for _, p := range f.products {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeProductRepo) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, storage.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProductRepo) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	product.ID = int64(len(f.products) + 1)
	f.products[product.ID] = product
	return product, nil
}

func (f *fakeProductRepo) LockProductsTx(ctx context.Context, tx *sql.Tx, ids []int64) (map[int64]*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	locked := make(map[int64]*models.Product, len(ids))
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			cp := *p
			locked[id] = &cp
		}
	}
	return locked, nil
}

func (f *fakeProductRepo) DecrementInventoryTx(ctx context.Context, tx *sql.Tx, id int64, quantity int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok || p.Inventory < quantity {
		return 0, storage.ErrInsufficientInventory
	}
	p.Inventory -= quantity
	return p.Inventory, nil
}

type fakeOrderRepo struct {
	mu     sync.Mutex
	nextID int64
	orders map[int64]*models.Order
	lines  []models.OrderLine
}

var _ storage.OrderStorage = (*fakeOrderRepo)(nil)

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{nextID: 41, orders: make(map[int64]*models.Order)}
}

func (f *fakeOrderRepo) CreateOrderTx(ctx context.Context, tx *sql.Tx, userID int64, totalAmount decimal.Decimal) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.orders[f.nextID] = &models.Order{ID: f.nextID, UserID: userID, TotalAmount: totalAmount}
	return f.nextID, nil
}

func (f *fakeOrderRepo) CreateOrderLineTx(ctx context.Context, tx *sql.Tx, orderID, productID int64, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, models.OrderLine{
		ID:        int64(len(f.lines) + 1),
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  quantity,
	})
	return nil
}

func (f *fakeOrderRepo) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.UserOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.UserOrder, 0)
	for _, line := range f.lines {
		if f.orders[line.OrderID].UserID != userID {
			continue
		}
		if n := len(out); n == 0 || out[n-1].OrderID != line.OrderID {
			out = append(out, models.UserOrder{OrderID: line.OrderID})
		}
		last := &out[len(out)-1]
		last.Products = append(last.Products, models.UserOrderProduct{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	return out, nil
}

func (f *fakeOrderRepo) GetOrderSummary(ctx context.Context, orderID int64) (*models.OrderSummary, error) {
	return nil, storage.ErrOrderNotFound
}

func (f *fakeOrderRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

type fakeNotifier struct {
	mu       sync.Mutex
	err      error
	enqueued []int64
}

func (f *fakeNotifier) Enqueue(ctx context.Context, orderID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, orderID)
	return nil
}

type fakeImageStore struct {
	uploaded []string
	deleted  []string
	err      error
}

func (f *fakeImageStore) Upload(ctx context.Context, productName, filename, contentType string, body io.Reader) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}
	if _, err := io.ReadAll(body); err != nil {
		return "", "", err
	}
	key := productName + "_" + filename
	f.uploaded = append(f.uploaded, key)
	return "https://bucket.s3.eu-north-1.amazonaws.com/" + key, key, nil
}

func (f *fakeImageStore) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

var errBoom = errors.New("boom")
