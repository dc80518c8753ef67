package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/kronor-shop/internal/service"
	"github.com/shopspring/decimal"
)

const maxProductFormSize = 10 << 20

// AddProductForm — поля multipart формы POST /add-product.
type AddProductForm struct {
	Category    string `validate:"required"`
	Gender      string `validate:"required"`
	ProductName string `validate:"required"`
	Size        string `validate:"required"`
	Price       string `validate:"required"`
	Count       string `validate:"required"`
	Description string
}

type AddProductResponse struct {
	Message   string `json:"message"`
	ProductID int64  `json:"product_id"`
	Inventory int    `json:"inventory"`
	ThumbLink string `json:"thumbLink"`
}

// ListProductsHandler обрабатывает запрос GET /products
func ListProductsHandler(log *slog.Logger, productService service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListProductsHandler"
		logger := log.With(slog.String("op", op))

		products, err := productService.ListProducts(r.Context())
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, products)
	}
}

// GetProductHandler обрабатывает запрос GET /products/{pid}
func GetProductHandler(log *slog.Logger, productService service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetProductHandler"
		logger := log.With(slog.String("op", op))

		// нецелый pid значит такого товара нет
		pid, err := strconv.ParseInt(chi.URLParam(r, "pid"), 10, 64)
		if err != nil {
			writeError(w, logger, http.StatusNotFound, "product not found")
			return
		}

		product, err := productService.GetProduct(r.Context(), pid)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, product)
	}
}

// AddProductHandler обрабатывает запрос POST /add-product
func AddProductHandler(log *slog.Logger, productService service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AddProductHandler"
		logger := log.With(slog.String("op", op))

		if err := r.ParseMultipartForm(maxProductFormSize); err != nil {
			logger.Error("invalid request: form parsing error", slog.Any("error", err))
			writeError(w, logger, http.StatusBadRequest, "invalid request")
			return
		}

		form := AddProductForm{
			Category:    r.FormValue("category"),
			Gender:      r.FormValue("gender"),
			ProductName: r.FormValue("productName"),
			Size:        r.FormValue("size"),
			Price:       r.FormValue("price"),
			Count:       r.FormValue("count"),
			Description: r.FormValue("description"),
		}
		if err := validate.Struct(form); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			writeError(w, logger, http.StatusBadRequest, "Missing required fields")
			return
		}

		price, err := decimal.NewFromString(form.Price)
		if err != nil {
			writeError(w, logger, http.StatusBadRequest, "invalid price")
			return
		}
		count, err := strconv.Atoi(form.Count)
		if err != nil {
			writeError(w, logger, http.StatusBadRequest, "invalid count")
			return
		}

		in := service.NewProduct{
			Category:    form.Category,
			Gender:      form.Gender,
			Name:        form.ProductName,
			Size:        form.Size,
			Price:       price,
			Inventory:   count,
			Description: form.Description,
		}

		file, header, err := r.FormFile("image")
		switch {
		case err == nil:
			defer file.Close()
			in.Image = &service.ProductImage{
				Filename:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Body:        file,
			}
		case !errors.Is(err, http.ErrMissingFile):
			logger.Error("failed to read image", slog.Any("error", err))
			writeError(w, logger, http.StatusBadRequest, "invalid image")
			return
		}

		product, err := productService.AddProduct(r.Context(), in)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusCreated, AddProductResponse{
			Message:   "Product added successfully",
			ProductID: product.ID,
			Inventory: product.Inventory,
			ThumbLink: product.ThumbLink,
		})
	}
}
