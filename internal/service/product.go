package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/linemk/kronor-shop/internal/domain/models"
	"github.com/linemk/kronor-shop/internal/storage"
	"github.com/shopspring/decimal"
)

// ImageStore хранит картинки товаров во внешнем хранилище.
type ImageStore interface {
	Upload(ctx context.Context, productName, filename, contentType string, body io.Reader) (url, key string, err error)
	Delete(ctx context.Context, key string) error
}

// ProductImage: необязательная картинка при добавлении товара.
type ProductImage struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// NewProduct — данные формы добавления товара.
type NewProduct struct {
	Category    string
	Gender      string
	Name        string
	Size        string
	Price       decimal.Decimal
	Inventory   int
	Description string
	Image       *ProductImage
}

type ProductService interface {
	ListProducts(ctx context.Context) ([]*models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	AddProduct(ctx context.Context, in NewProduct) (*models.Product, error)
}

type productService struct {
	log    *slog.Logger
	repo   storage.ProductStorage
	images ImageStore
}

func NewProductService(log *slog.Logger, repo storage.ProductStorage, images ImageStore) ProductService {
	return &productService{log: log, repo: repo, images: images}
}

func (s *productService) ListProducts(ctx context.Context) ([]*models.Product, error) {
	const op = "service.ProductService.ListProducts"

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		s.log.Error("failed to list products", slog.String("op", op), slog.Any("error", err))
		return nil, &DependencyError{Op: op, Err: err}
	}
	return products, nil
}

func (s *productService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	const op = "service.ProductService.GetProduct"

	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			return nil, &NotFoundError{Entity: "product", Key: id}
		}
		s.log.Error("failed to get product", slog.String("op", op), slog.Int64("pid", id), slog.Any("error", err))
		return nil, &DependencyError{Op: op, Err: err}
	}
	return product, nil
}

// AddProduct сначала загружает картинку, потом пишет товар в базу.
// Если вставка не удалась, загруженный объект удаляется.
func (s *productService) AddProduct(ctx context.Context, in NewProduct) (*models.Product, error) {
	const op = "service.ProductService.AddProduct"
	logger := s.log.With(slog.String("op", op), slog.String("productName", in.Name))

	if in.Inventory < 0 {
		return nil, &ValidationError{Msg: "Inventory must be a non-negative integer"}
	}
	if in.Price.IsNegative() {
		return nil, &ValidationError{Msg: "Price must be a non-negative number"}
	}

	product := &models.Product{
		Category:    in.Category,
		Gender:      in.Gender,
		Name:        in.Name,
		Size:        in.Size,
		Price:       in.Price,
		Inventory:   in.Inventory,
		Description: in.Description,
	}

	var imageKey string
	if in.Image != nil {
		if s.images == nil {
			return nil, &DependencyError{Op: op, Err: fmt.Errorf("image store is not configured")}
		}
		url, key, err := s.images.Upload(ctx, in.Name, in.Image.Filename, in.Image.ContentType, in.Image.Body)
		if err != nil {
			logger.Error("failed to upload product image", slog.Any("error", err))
			return nil, &DependencyError{Op: op, Err: fmt.Errorf("failed to upload image: %w", err)}
		}
		logger.Info("product image uploaded", slog.String("key", key))
		imageKey = key
		product.ImageLink = url
		product.ThumbLink = url
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		logger.Error("failed to create product", slog.Any("error", err))
		if imageKey != "" {
			if delErr := s.images.Delete(ctx, imageKey); delErr != nil {
				logger.Error("failed to delete orphaned image", slog.String("key", imageKey), slog.Any("error", delErr))
			}
		}
		return nil, &DependencyError{Op: op, Err: err}
	}

	logger.Info("product created", slog.Int64("pid", created.ID), slog.Int("inventory", created.Inventory))
	return created, nil
}
