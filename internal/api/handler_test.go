package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"forest-fashion/internal/auth"
	"forest-fashion/internal/models"
	"forest-fashion/internal/service"
	"forest-fashion/internal/testutil"
	"forest-fashion/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	_ = util.InitLogger("test", "forest-fashion")
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type testServer struct {
	router     *gin.Engine
	store      *testutil.MemoryStore
	tokens     *auth.TokenManager
	adminToken string
	userToken  string
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestServer(t *testing.T, checks map[string]Pinger) *testServer {
	t.Helper()
	st := testutil.NewMemoryStore()
	rc, _ := testutil.NewRedis(t)
	pub := &testutil.RecordingPublisher{}
	tokens := auth.NewTokenManager("test-secret", time.Hour)

	inv := service.NewInventoryService(st, st, rc, pub)
	svc := Services{
		Products:  service.NewProductService(st, inv, pub),
		Inventory: inv,
		Orders: service.NewOrderService(st, st, st, inv, rc, pub,
			service.OrderOptions{StockEnforcement: true, IdempotencyTTL: time.Hour}),
		Auth:     service.NewAuthService(st, tokens, "http://localhost:3000", time.Hour),
		Profiles: service.NewProfileService(st),
		Contacts: service.NewContactService(st, st),
		WhatsApp: service.NewWhatsAppService(st, st, "201097767079", "EGP "),
		Stats:    service.NewStatsService(st, st, st),
	}
	h := NewHandler(svc, Options{
		CartHoldTTL: 15 * time.Minute,
		Admin:       AdminAccount{Name: "Forest Admin", Email: "admin@forest-fashion.com", Password: "admin123"},
		Checks:      checks,
	})

	router := gin.New()
	h.SetupRoutes(router)

	adminToken, err := tokens.Issue("admin-1", "admin@forest-fashion.com", models.RoleAdmin)
	require.NoError(t, err)
	userToken, err := tokens.Issue("user-1", "laila@example.com", models.RoleUser)
	require.NoError(t, err)

	return &testServer{router: router, store: st, tokens: tokens, adminToken: adminToken, userToken: userToken}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, token string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func message(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	msg, _ := decode(t, w)["message"].(string)
	return msg
}

func hoodie(id string, quantity int) models.Product {
	return models.Product{
		ID:       id,
		Name:     "Shadow Hoodie",
		Price:    decimal.RequireFromString("49.99"),
		Category: "hoodies",
		SKU:      "FOREST-" + id,
		Status:   models.ProductStatusActive,
		Variants: models.Variants{{
			Color: "Black",
			Sizes: []models.SizeStock{{Size: "M", Quantity: quantity, LowStockThreshold: 5}},
		}},
	}
}

func orderBody(productID string, quantity int, paymentMethod string) map[string]interface{} {
	return map[string]interface{}{
		"items": []map[string]interface{}{{
			"productId": productID,
			"name":      "Shadow Hoodie",
			"price":     49.99,
			"size":      "M",
			"color":     "Black",
			"quantity":  quantity,
		}},
		"total": 49.99 * float64(quantity),
		"shippingAddress": map[string]string{
			"firstName": "Laila", "lastName": "Hassan", "email": "laila@example.com",
			"phone": "01000000000", "street": "12 Tahrir St", "city": "Cairo",
			"state": "Cairo", "zipCode": "11511", "country": "Egypt",
		},
		"paymentMethod": paymentMethod,
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, map[string]Pinger{
		"postgres": pingFunc(func(context.Context) error { return nil }),
	})

	w := s.do(t, http.MethodGet, "/api/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", decode(t, w)["status"])

	w = s.do(t, http.MethodGet, "/ready", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Route not found", message(t, w))

	down := newTestServer(t, map[string]Pinger{
		"redis": pingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	w = down.do(t, http.MethodGet, "/ready", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/api/orders", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Access token required", message(t, w))

	w = s.do(t, http.MethodGet, "/api/orders", nil, "garbage")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Invalid token", message(t, w))

	w = s.do(t, http.MethodGet, "/api/admin/stats", nil, s.userToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Admin access required", message(t, w))

	w = s.do(t, http.MethodGet, "/api/admin/stats", nil, s.adminToken)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegisterLoginMe(t *testing.T) {
	s := newTestServer(t, nil)
	creds := map[string]string{"name": "Laila", "email": "laila@example.com", "password": "secret1"}

	w := s.do(t, http.MethodPost, "/api/auth/register", creds, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	token, _ := decode(t, w)["token"].(string)
	require.NotEmpty(t, token)

	w = s.do(t, http.MethodPost, "/api/auth/register", creds, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "User already exists", message(t, w))

	w = s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "laila@example.com", "password": "nope"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid credentials", message(t, w))

	w = s.do(t, http.MethodGet, "/api/auth/me", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	user := decode(t, w)["user"].(map[string]interface{})
	assert.Equal(t, "laila@example.com", user["email"])
	assert.NotContains(t, w.Body.String(), "password")
}

func TestPasswordResetEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(t, http.MethodPost, "/api/auth/register",
		map[string]string{"name": "Laila", "email": "laila@example.com", "password": "secret1"}, "")
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodPost, "/api/auth/forget-password", map[string]string{"email": "ghost@example.com"}, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User not found with this email address", message(t, w))

	w = s.do(t, http.MethodPost, "/api/auth/forget-password", map[string]string{"email": "laila@example.com"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	resetURL := decode(t, w)["resetUrl"].(string)
	token := resetURL[strings.Index(resetURL, "token=")+len("token="):]

	w = s.do(t, http.MethodGet, "/api/auth/verify-reset-token/"+token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["valid"])

	w = s.do(t, http.MethodPost, "/api/auth/reset-password", map[string]string{"token": token, "newPassword": "newsecret"}, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/auth/verify-reset-token/"+token, nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid or expired reset token", message(t, w))
}

type formFile struct {
	name string
	data []byte
}

func multipartRequest(t *testing.T, method, path, token string, fields map[string]string, files ...formFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		part, err := mw.CreateFormFile("images", f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func TestCreateProductMultipart(t *testing.T) {
	s := newTestServer(t, nil)
	fields := map[string]string{
		"name":        "Moss Cargo Pants",
		"description": "Relaxed fit",
		"price":       "899.50",
		"category":    "pants",
		"variants":    `[{"color":"Olive","sizes":[{"size":"M","quantity":4}]}]`,
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, multipartRequest(t, http.MethodPost, "/api/products", s.adminToken, fields,
		formFile{"front.png", pngBytes}, formFile{"back.png", pngBytes}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode(t, w)
	images := body["images"].([]interface{})
	require.Len(t, images, 2)
	first := images[0].(map[string]interface{})
	assert.True(t, strings.HasPrefix(first["url"].(string), "data:image/png;base64,"))
	assert.Equal(t, "Moss Cargo Pants - Image 1", first["altText"])
	assert.Equal(t, true, first["isPrimary"])
	assert.Equal(t, float64(4), body["availableStock"])

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, multipartRequest(t, http.MethodPost, "/api/products", s.adminToken, fields,
		formFile{"notes.png", []byte("just some text, not an image")}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Only image files are allowed", message(t, w))

	fields["variants"] = "{oops"
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, multipartRequest(t, http.MethodPost, "/api/products", s.adminToken, fields))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid variants format", message(t, w))

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, multipartRequest(t, http.MethodPost, "/api/products", s.userToken, fields))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUpdateAndDeleteProduct(t *testing.T) {
	s := newTestServer(t, nil)
	s.store.PutProduct(hoodie("p1", 5))

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, multipartRequest(t, http.MethodPut, "/api/products/p1", s.adminToken,
		map[string]string{"price": "39.99"}, formFile{"new.png", pngBytes}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "Shadow Hoodie", body["name"])
	first := body["images"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "Shadow Hoodie - Image 1", first["altText"])

	w = s.do(t, http.MethodDelete, "/api/products/p1", nil, s.adminToken)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodGet, "/api/products/p1", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Product not found", message(t, w))
}

func TestListProductsHidesDiscontinued(t *testing.T) {
	s := newTestServer(t, nil)
	gone := hoodie("p2", 1)
	gone.Status = models.ProductStatusDiscontinued
	s.store.PutProduct(hoodie("p1", 1))
	s.store.PutProduct(gone)

	count := func(path, token string) int {
		w := s.do(t, http.MethodGet, path, nil, token)
		require.Equal(t, http.StatusOK, w.Code)
		var list []map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
		return len(list)
	}

	assert.Equal(t, 1, count("/api/products", ""))
	assert.Equal(t, 1, count("/api/products?status=all", s.userToken))
	assert.Equal(t, 2, count("/api/products?status=all", s.adminToken))
	assert.Equal(t, 1, count("/api/products?status=discontinued", s.adminToken))
	assert.Equal(t, 0, count("/api/products?category=pants", ""))
}

func TestProductStock(t *testing.T) {
	s := newTestServer(t, nil)
	p := hoodie("p1", 10)
	p.Variants[0].Sizes[0].Reserved = 6
	s.store.PutProduct(p)

	w := s.do(t, http.MethodGet, "/api/products/p1/stock?size=M&color=Black", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(4), body["available"])
	assert.Equal(t, true, body["isLow"])

	w = s.do(t, http.MethodGet, "/api/products/p1/stock?size=XL&color=Black", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["isOut"])
}

func TestCreateOrder(t *testing.T) {
	s := newTestServer(t, nil)
	s.store.PutProduct(hoodie("p1", 10))
	s.store.PutProduct(hoodie("p2", 1))

	w := s.do(t, http.MethodPost, "/api/orders", orderBody("p1", 1, "bitcoin"), s.userToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid payment method", message(t, w))

	w = s.do(t, http.MethodPost, "/api/orders", orderBody("p2", 3, models.PaymentMethodVisa), s.userToken)
	assert.Equal(t, http.StatusConflict, w.Code)

	orders, err := s.store.ListOrders(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, orders)

	w = s.do(t, http.MethodPost, "/api/orders", orderBody("p1", 2, models.PaymentMethodCashOnDelivery), s.userToken,
		"Idempotency-Key", "cart-7")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode(t, w)["id"]

	w = s.do(t, http.MethodPost, "/api/orders", orderBody("p1", 2, models.PaymentMethodCashOnDelivery), s.userToken,
		"Idempotency-Key", "cart-7")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, decode(t, w)["id"])

	w = s.do(t, http.MethodGet, "/api/orders", nil, s.userToken)
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	w = s.do(t, http.MethodPut, "/api/orders/"+id.(string)+"/status", map[string]string{"status": "lost"}, s.adminToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid status", message(t, w))

	w = s.do(t, http.MethodPut, "/api/orders/"+id.(string)+"/status", map[string]string{"status": "shipped"}, s.adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "shipped", decode(t, w)["status"])

	w = s.do(t, http.MethodGet, "/api/orders/missing", nil, s.adminToken)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Order not found", message(t, w))
}

func TestReservationEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	s.store.PutProduct(hoodie("p1", 2))

	req := map[string]interface{}{"productId": "p1", "color": "Black", "size": "M", "quantity": 2}
	w := s.do(t, http.MethodPost, "/api/reservations", req, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	token := body["token"].(string)
	assert.NotNil(t, body["expiresAt"])

	w = s.do(t, http.MethodPost, "/api/reservations", req, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodDelete, "/api/reservations/"+token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/reservations", req, "")
	assert.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodDelete, "/api/reservations/unknown", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Reservation not found", message(t, w))
}

func TestCartHoldBecomesOrder(t *testing.T) {
	s := newTestServer(t, nil)
	s.store.PutProduct(hoodie("p1", 1))

	hold := map[string]interface{}{"productId": "p1", "color": "Black", "size": "M", "quantity": 1}
	w := s.do(t, http.MethodPost, "/api/reservations", hold, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	token := decode(t, w)["token"].(string)

	// the hold is the last unit, so checkout only succeeds by claiming it
	w = s.do(t, http.MethodPost, "/api/orders", orderBody("p1", 1, models.PaymentMethodCashOnDelivery), s.userToken)
	assert.Equal(t, http.StatusConflict, w.Code)

	body := orderBody("p1", 1, models.PaymentMethodCashOnDelivery)
	body["reservations"] = []string{token}
	w = s.do(t, http.MethodPost, "/api/orders", body, s.userToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/orders", body, s.userToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Reservation is no longer held", message(t, w))
}

func TestProfileAndWhatsApp(t *testing.T) {
	s := newTestServer(t, nil)
	s.store.PutProduct(hoodie("p1", 5))
	order := map[string]interface{}{"productId": "p1", "size": "M", "color": "Black", "quantity": 1}

	w := s.do(t, http.MethodPost, "/api/whatsapp-order", order, s.userToken)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Please complete your profile first", message(t, w))

	w = s.do(t, http.MethodGet, "/api/profile", nil, s.userToken)
	assert.Equal(t, http.StatusNotFound, w.Code)

	profile := map[string]interface{}{
		"firstName": "Laila", "lastName": "Hassan", "email": "laila@example.com", "phone": "01000000000",
		"address": map[string]string{"street": "12 Tahrir St", "city": "Cairo", "state": "Cairo", "zipCode": "11511"},
	}
	w = s.do(t, http.MethodPost, "/api/profile", profile, s.userToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Complete address is required", message(t, w))

	profile["address"].(map[string]string)["country"] = "Egypt"
	w = s.do(t, http.MethodPost, "/api/profile", profile, s.userToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Profile updated successfully", message(t, w))

	w = s.do(t, http.MethodPost, "/api/whatsapp-order", order, s.userToken)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.True(t, strings.HasPrefix(body["whatsappUrl"].(string), "https://wa.me/201097767079?text="))
	assert.Contains(t, body["customerInfo"], "Shadow Hoodie")
}

func TestContactAndNewsletter(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/contact", map[string]string{"name": "Omar", "email": "omar@example.com"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/contact",
		map[string]string{"name": "Omar", "email": "omar@example.com", "subject": "Sizes", "message": "XXL?"}, "")
	assert.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodGet, "/api/contact", nil, s.adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	var contacts []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &contacts))
	require.Len(t, contacts, 1)

	w = s.do(t, http.MethodPut, "/api/contact/"+contacts[0]["id"].(string)+"/status", map[string]string{"status": "read"}, s.adminToken)
	assert.Equal(t, http.StatusOK, w.Code)

	email := map[string]string{"email": "reader@example.com"}
	w = s.do(t, http.MethodPost, "/api/newsletter/subscribe", email, "")
	assert.Equal(t, http.StatusCreated, w.Code)
	w = s.do(t, http.MethodPost, "/api/newsletter/subscribe", email, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Email already subscribed", message(t, w))
	w = s.do(t, http.MethodPost, "/api/newsletter/unsubscribe", email, "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodPost, "/api/newsletter/subscribe", email, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Subscription reactivated", message(t, w))

	w = s.do(t, http.MethodPost, "/api/newsletter/unsubscribe", map[string]string{"email": "ghost@example.com"}, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Email not found", message(t, w))
}

func TestSeedAdminAndFixOrders(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/seed-admin", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodPost, "/api/seed-admin", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Admin user already exists", message(t, w))

	w = s.do(t, http.MethodPost, "/api/auth/login",
		map[string]string{"email": "admin@forest-fashion.com", "password": "admin123"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	token := decode(t, w)["token"].(string)

	s.store.PutOrder(models.Order{ID: "legacy", Status: models.OrderStatusPending})
	w = s.do(t, http.MethodPost, "/api/fix-orders", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["modifiedCount"])
}
