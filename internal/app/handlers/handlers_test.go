package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/linemk/kronor-shop/internal/app/handlers"
	"github.com/linemk/kronor-shop/internal/domain/models"
	security "github.com/linemk/kronor-shop/internal/jwt-new"
	"github.com/linemk/kronor-shop/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/kronor-shop/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOrderService — фиктивная реализация OrderService, запоминает аргументы.
type fakeOrderService struct {
	result  *service.PlaceOrderResult
	orders  []models.UserOrder
	err     error
	gotSub  string
	gotItem []service.OrderItem
}

func (f *fakeOrderService) PlaceOrder(ctx context.Context, userSub string, items []service.OrderItem) (*service.PlaceOrderResult, error) {
	f.gotSub, f.gotItem = userSub, items
	return f.result, f.err
}

func (f *fakeOrderService) ListUserOrders(ctx context.Context, userSub string) ([]models.UserOrder, error) {
	f.gotSub = userSub
	return f.orders, f.err
}

type fakeProductService struct {
	products []*models.Product
	err      error
	got      service.NewProduct
	gotImage []byte
}

func (f *fakeProductService) ListProducts(ctx context.Context) ([]*models.Product, error) {
	return f.products, f.err
}

func (f *fakeProductService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, p := range f.products {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, &service.NotFoundError{Entity: "product", Key: id}
}

func (f *fakeProductService) AddProduct(ctx context.Context, in service.NewProduct) (*models.Product, error) {
	f.got = in
	if in.Image != nil {
		f.gotImage, _ = io.ReadAll(in.Image.Body)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &models.Product{ID: 7, Name: in.Name, Inventory: in.Inventory, ThumbLink: "https://cdn/img.png"}, nil
}

type fakeUserService struct {
	err                    error
	gotSub, gotEmail, gotN string
}

func (f *fakeUserService) TrackUser(ctx context.Context, sub, email, name string) (*models.User, error) {
	f.gotSub, f.gotEmail, f.gotN = sub, email, name
	if f.err != nil {
		return nil, f.err
	}
	return &models.User{ID: 1, Sub: sub, Email: email, Name: name}, nil
}

type fakePinger struct{ err error }

func (f fakePinger) PingContext(ctx context.Context) error { return f.err }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body handlers.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body), "error body should be JSON")
	return body.Error
}

func postOrder(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/place-order", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestPlaceOrderHandler_Success(t *testing.T) {
	fakeSvc := &fakeOrderService{result: &service.PlaceOrderResult{OrderID: 42, TotalAmount: decimal.RequireFromString("45.48")}}
	handler := handlers.PlaceOrderHandler(testLogger(), fakeSvc)

	rr := postOrder(handler, `{"user_sub": "sub-1", "products": [{"pid": 1, "quantity": 2}, {"pid": 2}]}`)

	assert.Equal(t, http.StatusCreated, rr.Code, "Expected status 201 Created")
	assert.Equal(t, "sub-1", fakeSvc.gotSub)
	assert.Equal(t, []service.OrderItem{{ProductID: 1, Quantity: 2}, {ProductID: 2, Quantity: 1}}, fakeSvc.gotItem, "quantity defaults to 1")

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "Order placed successfully. Confirmation email processing initiated.", resp["message"])
	assert.Equal(t, float64(42), resp["order_id"])
	assert.Equal(t, 45.48, resp["total_amount"], "total is a JSON number")
}

func TestPlaceOrderHandler_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"invalid json", `{"user_sub": `, "invalid request"},
		{"missing sub", `{"products": [{"pid": 1}]}`, "Missing required parameters (user_sub or products)"},
		{"empty products", `{"user_sub": "sub-1", "products": []}`, "Missing required parameters (user_sub or products)"},
		{"products not a list", `{"user_sub": "sub-1", "products": "x"}`, "'products' must be a list of objects with pid and quantity"},
		{"null quantity", `{"user_sub": "sub-1", "products": [{"pid": 1, "quantity": null}]}`, "Invalid product or quantity: {pid: 1, quantity: null}"},
		{"string quantity", `{"user_sub": "sub-1", "products": [{"pid": 1, "quantity": "2"}]}`, "invalid request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fakeSvc := &fakeOrderService{}
			rr := postOrder(handlers.PlaceOrderHandler(testLogger(), fakeSvc), tt.body)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tt.want, decodeError(t, rr))
			assert.Nil(t, fakeSvc.gotItem, "service must not be called")
		})
	}
}

func TestPlaceOrderHandler_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"validation", &service.ValidationError{Msg: "Invalid product or quantity: {pid: 1, quantity: 0}"}, http.StatusBadRequest, "Invalid product or quantity: {pid: 1, quantity: 0}"},
		{"unknown user", &service.NotFoundError{Entity: "user", Key: "sub-1"}, http.StatusNotFound, "User not found"},
		{"unknown product", &service.NotFoundError{Entity: "product", Key: int64(999)}, http.StatusNotFound, "Product with ID 999 not found"},
		{"insufficient", &service.InsufficientInventoryError{ProductID: 1, Name: "Tee"}, http.StatusBadRequest, "Product Tee (ID: 1) does not have enough inventory."},
		{"dependency", &service.DependencyError{Op: "op", Err: errors.New("connection reset")}, http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fakeSvc := &fakeOrderService{err: tt.err}
			rr := postOrder(handlers.PlaceOrderHandler(testLogger(), fakeSvc), `{"user_sub": "sub-1", "products": [{"pid": 1, "quantity": 1}]}`)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantError, decodeError(t, rr))
		})
	}
}

func TestUserOrdersHandler(t *testing.T) {
	fakeSvc := &fakeOrderService{orders: []models.UserOrder{{
		OrderID:  42,
		Products: []models.UserOrderProduct{{ProductID: 1, Name: "Tee", Price: decimal.RequireFromString("19.99"), Quantity: 2}},
	}}}
	router := chi.NewRouter()
	router.Get("/user-orders/{user_sub}", handlers.UserOrdersHandler(testLogger(), fakeSvc))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/user-orders/sub-1", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "sub-1", fakeSvc.gotSub)
	assert.JSONEq(t, `[{"order_id":42,"products":[{"pid":1,"category":"","gender":"","productName":"Tee","size":"","price":"19.99","thumbLink":"","quantity":2}]}]`, rr.Body.String())
}

func TestUserOrdersHandler_UserNotFound(t *testing.T) {
	fakeSvc := &fakeOrderService{err: &service.NotFoundError{Entity: "user", Key: "ghost"}}
	router := chi.NewRouter()
	router.Get("/user-orders/{user_sub}", handlers.UserOrdersHandler(testLogger(), fakeSvc))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/user-orders/ghost", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "User not found", decodeError(t, rr))
}

func productRouter(svc service.ProductService) http.Handler {
	router := chi.NewRouter()
	router.Get("/products", handlers.ListProductsHandler(testLogger(), svc))
	router.Get("/products/{pid}", handlers.GetProductHandler(testLogger(), svc))
	router.Post("/add-product", handlers.AddProductHandler(testLogger(), svc))
	return router
}

func TestProductHandlers_Get(t *testing.T) {
	fakeSvc := &fakeProductService{products: []*models.Product{
		{ID: 1, Name: "Tee", Price: decimal.RequireFromString("19.99"), Inventory: 3},
	}}
	router := productRouter(fakeSvc)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"productName":"Tee"`)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products/1", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"price":"19.99"`)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products/2", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products/abc", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code, "non-integer pid is not found")
}

func TestProductHandlers_ListFailure(t *testing.T) {
	router := productRouter(&fakeProductService{err: &service.DependencyError{Op: "op", Err: errors.New("db down")}})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "db down", "internal errors are not exposed")
}

func productForm(t *testing.T, fields map[string]string, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if image != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="tee.png"`)
		h.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func validProductFields() map[string]string {
	return map[string]string{
		"category":    "shirts",
		"gender":      "unisex",
		"productName": "Cloud Tee",
		"size":        "M",
		"price":       "19.99",
		"count":       "5",
	}
}

func TestAddProductHandler_WithImage(t *testing.T) {
	fakeSvc := &fakeProductService{}
	body, contentType := productForm(t, validProductFields(), []byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/add-product", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()

	productRouter(fakeSvc).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.JSONEq(t, `{"message":"Product added successfully","product_id":7,"inventory":5,"thumbLink":"https://cdn/img.png"}`, rr.Body.String())
	assert.Equal(t, "Cloud Tee", fakeSvc.got.Name)
	assert.True(t, decimal.RequireFromString("19.99").Equal(fakeSvc.got.Price))
	require.NotNil(t, fakeSvc.got.Image)
	assert.Equal(t, "tee.png", fakeSvc.got.Image.Filename)
	assert.Equal(t, "image/png", fakeSvc.got.Image.ContentType)
	assert.Equal(t, []byte("png-bytes"), fakeSvc.gotImage)
}

func TestAddProductHandler_BadForm(t *testing.T) {
	missing := validProductFields()
	delete(missing, "size")
	badPrice := validProductFields()
	badPrice["price"] = "cheap"
	badCount := validProductFields()
	badCount["count"] = "1.5"

	tests := []struct {
		name   string
		fields map[string]string
		want   string
	}{
		{"missing field", missing, "Missing required fields"},
		{"bad price", badPrice, "invalid price"},
		{"bad count", badCount, "invalid count"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := productForm(t, tt.fields, nil)
			req := httptest.NewRequest(http.MethodPost, "/add-product", body)
			req.Header.Set("Content-Type", contentType)
			rr := httptest.NewRecorder()

			productRouter(&fakeProductService{}).ServeHTTP(rr, req)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tt.want, decodeError(t, rr))
		})
	}
}

func withClaims(req *http.Request, claims *security.Claims) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), jwtmiddleware.ClaimsKey, claims))
}

func tokenClaims() *security.Claims {
	return &security.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "sub-1"},
		Email:            "jane@example.com",
		Name:             "Jane",
	}
}

func TestTrackUserHandler_FallsBackToClaims(t *testing.T) {
	fakeSvc := &fakeUserService{}
	req := withClaims(httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"name": "Jane D."}`)), tokenClaims())
	rr := httptest.NewRecorder()

	handlers.TrackUserHandler(testLogger(), fakeSvc).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"User stored/updated successfully","sub":"sub-1"}`, rr.Body.String())
	assert.Equal(t, "sub-1", fakeSvc.gotSub)
	assert.Equal(t, "jane@example.com", fakeSvc.gotEmail, "email comes from token")
	assert.Equal(t, "Jane D.", fakeSvc.gotN, "body name wins")
}

func TestTrackUserHandler_EmptyBody(t *testing.T) {
	fakeSvc := &fakeUserService{}
	req := withClaims(httptest.NewRequest(http.MethodPost, "/users", http.NoBody), tokenClaims())
	rr := httptest.NewRecorder()

	handlers.TrackUserHandler(testLogger(), fakeSvc).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Jane", fakeSvc.gotN)
}

func TestTrackUserHandler_Rejections(t *testing.T) {
	t.Run("no claims", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handlers.TrackUserHandler(testLogger(), &fakeUserService{}).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/users", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("foreign sub", func(t *testing.T) {
		fakeSvc := &fakeUserService{}
		req := withClaims(httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"sub": "someone-else"}`)), tokenClaims())
		rr := httptest.NewRecorder()
		handlers.TrackUserHandler(testLogger(), fakeSvc).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Empty(t, fakeSvc.gotSub)
	})

	t.Run("bad email", func(t *testing.T) {
		req := withClaims(httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"email": "nope"}`)), tokenClaims())
		rr := httptest.NewRecorder()
		handlers.TrackUserHandler(testLogger(), &fakeUserService{}).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		fakeSvc := &fakeUserService{err: &service.DependencyError{Op: "op", Err: errors.New("db down")}}
		req := withClaims(httptest.NewRequest(http.MethodPost, "/users", nil), tokenClaims())
		rr := httptest.NewRecorder()
		handlers.TrackUserHandler(testLogger(), fakeSvc).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestHealthHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	handlers.HealthHandler(testLogger(), fakePinger{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Connection success"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	handlers.HealthHandler(testLogger(), fakePinger{err: errors.New("refused")}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
