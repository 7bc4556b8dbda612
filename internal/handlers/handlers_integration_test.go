package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"medigo/internal/app"
	"medigo/internal/cart"
	"medigo/internal/config"
	"medigo/internal/database"
	"medigo/internal/events"
	"medigo/internal/handlers"
	"medigo/internal/repositories"
	"medigo/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adminEmail    = "admin@medigo.test"
	adminPassword = "admin-secret"
)

// setupApp builds the full application over a private in-memory SQLite
// database.
func setupApp(t *testing.T) *fiber.App {
	t.Helper()
	a, _ := setupAppWithUploads(t)
	return a
}

// setupAppWithUploads also returns the upload directory.
func setupAppWithUploads(t *testing.T) (*fiber.App, string) {
	t.Helper()
	uploadDir := t.TempDir()
	db, err := database.OpenGORM("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{
		JWTSecret:     "test_jwt_secret",
		JWTExpiry:     time.Hour,
		ClientOrigin:  "http://localhost:5173",
		UploadDir:     uploadDir,
		RateLimitAuth: 1000,
		BodyLimitMB:   2,
	}

	userRepo := repositories.NewGORMUserRepository(db)
	productRepo := repositories.NewGORMProductRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)
	publisher := events.NopPublisher{}

	authService := services.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTExpiry)
	orderService := services.NewOrderService(orderRepo, productRepo, userRepo, publisher)
	require.NoError(t, authService.EnsureAdmin(context.Background(), adminEmail, adminPassword))

	return app.New(cfg, app.Services{
		Auth:     authService,
		Products: services.NewProductService(productRepo, publisher),
		Orders:   orderService,
		Users:    services.NewUserService(userRepo),
		Carts:    services.NewCartService(cart.NewStore(repositories.NewGORMCartRepository(db)), productRepo, orderService),
	}), uploadDir
}

type response struct {
	status int
	body   map[string]interface{}
}

func (r response) data() map[string]interface{} {
	d, _ := r.body["data"].(map[string]interface{})
	return d
}

func send(t *testing.T, a *fiber.App, req *http.Request, token string) response {
	t.Helper()
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := a.Test(req, -1) // -1 for no timeout
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := response{status: resp.StatusCode, body: map[string]interface{}{}}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out.body), string(raw))
	}
	return out
}

func doJSON(t *testing.T, a *fiber.App, method, path, token string, body interface{}, headers ...string) response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return send(t, a, req, token)
}

var address = map[string]interface{}{
	"fullAddress": "12 MG Road",
	"city":        "Pune",
	"state":       "MH",
	"zipCode":     "411001",
	"phone":       "9999999999",
}

// register signs up an account and returns its token and id.
func register(t *testing.T, a *fiber.App, role, email string) (string, string) {
	t.Helper()
	body := map[string]interface{}{
		"fullName": "Test " + role,
		"email":    email,
		"password": "password123",
		"phone":    "9999999999",
		"role":     role,
	}
	switch role {
	case "pharmacy":
		body["pharmacyDetails"] = map[string]interface{}{
			"pharmacyName":  "Care Pharmacy",
			"licenseNumber": "LIC-1",
			"address":       address,
		}
	case "driver":
		body["driverDetails"] = map[string]interface{}{"vehicleType": "bike", "vehicleNumber": "MH12"}
	}
	resp := doJSON(t, a, fiber.MethodPost, "/api/auth/register", "", body)
	require.Equal(t, fiber.StatusCreated, resp.status, resp.body)
	user := resp.body["user"].(map[string]interface{})
	return resp.body["token"].(string), user["id"].(string)
}

func login(t *testing.T, a *fiber.App, email, password string) string {
	t.Helper()
	resp := doJSON(t, a, fiber.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, fiber.StatusOK, resp.status, resp.body)
	return resp.body["token"].(string)
}

func createProduct(t *testing.T, a *fiber.App, token, name string, price float64, qty int) string {
	t.Helper()
	resp := doJSON(t, a, fiber.MethodPost, "/api/products", token, map[string]interface{}{
		"name":         name,
		"description":  "Relieves mild to moderate pain",
		"category":     "otc",
		"manufacturer": "Acme Labs",
		"pricing":      map[string]interface{}{"price": price},
		"stock":        map[string]interface{}{"quantity": qty, "lowStockThreshold": 2, "unit": "strip"},
		"tags":         []string{"pain"},
	})
	require.Equal(t, fiber.StatusCreated, resp.status, resp.body)
	return resp.data()["id"].(string)
}

func TestAuthRegisterAndLogin(t *testing.T) {
	a := setupApp(t)

	token, id := register(t, a, "customer", "test@example.com")
	assert.NotEmpty(t, token)

	resp := doJSON(t, a, fiber.MethodPost, "/api/auth/register", "", map[string]interface{}{
		"fullName": "Again", "email": "TEST@example.com", "password": "password123", "phone": "1",
	})
	assert.Equal(t, fiber.StatusConflict, resp.status)

	resp = doJSON(t, a, fiber.MethodPost, "/api/auth/register", "", map[string]interface{}{
		"fullName": "Bad", "email": "not-an-email", "password": "123", "phone": "1", "role": "admin",
	})
	require.Equal(t, fiber.StatusBadRequest, resp.status)
	assert.Equal(t, "Validation failed", resp.body["message"])
	errs := resp.body["errors"].(map[string]interface{})
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "password")
	assert.Contains(t, errs, "role")

	resp = doJSON(t, a, fiber.MethodPost, "/api/auth/login", "", map[string]string{"email": "test@example.com", "password": "wrong-password"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.status)

	token = login(t, a, "test@example.com", "password123")
	resp = doJSON(t, a, fiber.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, id, resp.data()["id"])
	assert.NotContains(t, resp.data(), "password")

	resp = doJSON(t, a, fiber.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.status)
	resp = doJSON(t, a, fiber.MethodGet, "/api/auth/me", "garbage", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.status)

	resp = doJSON(t, a, fiber.MethodPut, "/api/auth/update-profile", token, map[string]interface{}{"fullName": "Renamed", "role": "admin"})
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, "Renamed", resp.data()["fullName"])
	assert.Equal(t, "customer", resp.data()["role"])

	resp = doJSON(t, a, fiber.MethodPut, "/api/auth/update-password", token, map[string]string{"currentPassword": "nope", "newPassword": "newpassword"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.status)
	resp = doJSON(t, a, fiber.MethodPut, "/api/auth/update-password", token, map[string]string{"currentPassword": "password123", "newPassword": "newpassword"})
	require.Equal(t, fiber.StatusOK, resp.status)
	login(t, a, "test@example.com", "newpassword")
}

func TestProductEndpoints(t *testing.T) {
	a := setupApp(t)
	pharmacy, pharmacyID := register(t, a, "pharmacy", "pharmacy@example.com")
	other, _ := register(t, a, "pharmacy", "other@example.com")
	customer, _ := register(t, a, "customer", "customer@example.com")

	id := createProduct(t, a, pharmacy, "Paracetamol 500mg", 30, 40)
	createProduct(t, a, pharmacy, "Ibuprofen 200mg", 45, 1)

	resp := doJSON(t, a, fiber.MethodPost, "/api/products", customer, map[string]interface{}{"name": "Nope"})
	assert.Equal(t, fiber.StatusForbidden, resp.status)

	resp = doJSON(t, a, fiber.MethodPost, "/api/products", pharmacy, map[string]interface{}{
		"name": "Vitamin D", "description": "Daily vitamin supplement", "category": "supplement", "manufacturer": "Acme",
		"pricing": map[string]interface{}{"price": 10, "discountPrice": 12},
		"stock":   map[string]interface{}{"quantity": 5},
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.status, "discount above price")

	resp = doJSON(t, a, fiber.MethodGet, "/api/products?search=paracet&limit=500", "", nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, true, resp.body["success"])
	items := resp.body["data"].([]interface{})
	require.Len(t, items, 1)
	pagination := resp.body["pagination"].(map[string]interface{})
	assert.EqualValues(t, 1, pagination["total"])
	assert.EqualValues(t, 1, pagination["page"])
	assert.EqualValues(t, 1, pagination["pages"])

	resp = doJSON(t, a, fiber.MethodGet, "/api/products?pharmacyId="+pharmacyID+"&maxPrice=40", "", nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Len(t, resp.body["data"].([]interface{}), 1)

	resp = doJSON(t, a, fiber.MethodGet, "/api/products?minPrice=abc", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.status)

	resp = doJSON(t, a, fiber.MethodPut, "/api/products/"+id+"/stock", other, map[string]int{"quantity": 3})
	assert.Equal(t, fiber.StatusForbidden, resp.status)
	resp = doJSON(t, a, fiber.MethodPut, "/api/products/"+id+"/stock", pharmacy, map[string]int{"quantity": 3})
	require.Equal(t, fiber.StatusOK, resp.status)
	stock := resp.data()["stock"].(map[string]interface{})
	assert.EqualValues(t, 3, stock["quantity"])

	resp = doJSON(t, a, fiber.MethodGet, "/api/products/my/products?lowStock=true", pharmacy, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Len(t, resp.body["data"].([]interface{}), 1)

	resp = doJSON(t, a, fiber.MethodDelete, "/api/products/"+id, pharmacy, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	resp = doJSON(t, a, fiber.MethodGet, "/api/products/"+id, "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.status)
}

func multipartProduct(t *testing.T, fields map[string]string, image string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if image != "" {
		part, err := w.CreateFormFile("image", image)
		require.NoError(t, err)
		_, err = part.Write([]byte("\x89PNG fake image"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func penFields() map[string]string {
	return map[string]string{
		"name":                 "Insulin pen",
		"description":          "Prefilled insulin pen",
		"category":             "prescription",
		"manufacturer":         "Novo",
		"pricing":              `{"price": 450, "discountPrice": 400}`,
		"stock":                `{"quantity": 12, "unit": "box"}`,
		"requiresPrescription": "false",
	}
}

func sendMultipart(t *testing.T, a *fiber.App, method, path, token string, fields map[string]string, image string) response {
	t.Helper()
	body, contentType := multipartProduct(t, fields, image)
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(fiber.HeaderContentType, contentType)
	return send(t, a, req, token)
}

func uploadedFiles(t *testing.T, uploadDir string) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(uploadDir, "products"))
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestProductMultipartUpload(t *testing.T) {
	a, uploadDir := setupAppWithUploads(t)
	pharmacy, _ := register(t, a, "pharmacy", "pharmacy@example.com")

	resp := sendMultipart(t, a, fiber.MethodPost, "/api/products", pharmacy, penFields(), "pen.png")
	require.Equal(t, fiber.StatusCreated, resp.status, resp.body)

	product := resp.data()
	assert.Equal(t, true, product["requiresPrescription"], "prescription category forces the flag")
	images := product["images"].([]interface{})
	require.Len(t, images, 1)
	assert.Regexp(t, `^/uploads/products/.+\.png$`, images[0])
	assert.Len(t, uploadedFiles(t, uploadDir), 1)

	file := send(t, a, httptest.NewRequest(fiber.MethodGet, images[0].(string), nil), "")
	assert.Equal(t, fiber.StatusOK, file.status)
}

func TestProductMultipartRejectedLeavesNoFile(t *testing.T) {
	a, uploadDir := setupAppWithUploads(t)
	pharmacy, _ := register(t, a, "pharmacy", "pharmacy@example.com")
	other, _ := register(t, a, "pharmacy", "other@example.com")
	id := createProduct(t, a, pharmacy, "Paracetamol 500mg", 30, 40)

	invalid := penFields()
	invalid["name"] = "X"
	resp := sendMultipart(t, a, fiber.MethodPost, "/api/products", pharmacy, invalid, "pen.png")
	require.Equal(t, fiber.StatusBadRequest, resp.status)
	assert.Contains(t, resp.body["errors"], "name")

	overpriced := penFields()
	overpriced["pricing"] = `{"price": 10, "discountPrice": 20}`
	resp = sendMultipart(t, a, fiber.MethodPost, "/api/products", pharmacy, overpriced, "pen.png")
	require.Equal(t, fiber.StatusBadRequest, resp.status)

	resp = sendMultipart(t, a, fiber.MethodPut, "/api/products/"+id, other, penFields(), "pen.png")
	require.Equal(t, fiber.StatusForbidden, resp.status)

	assert.Empty(t, uploadedFiles(t, uploadDir))
}

func TestOrderLifecycleEndpoints(t *testing.T) {
	a := setupApp(t)
	pharmacy, _ := register(t, a, "pharmacy", "pharmacy@example.com")
	customer, _ := register(t, a, "customer", "customer@example.com")
	driver, driverID := register(t, a, "driver", "driver@example.com")
	admin := login(t, a, adminEmail, adminPassword)
	productID := createProduct(t, a, pharmacy, "Paracetamol 500mg", 30, 10)

	order := map[string]interface{}{
		"items":           []map[string]interface{}{{"productId": productID, "quantity": 2}},
		"deliveryAddress": address,
		"paymentMethod":   "cod",
	}

	resp := doJSON(t, a, fiber.MethodPost, "/api/orders", pharmacy, order)
	assert.Equal(t, fiber.StatusForbidden, resp.status)

	resp = doJSON(t, a, fiber.MethodPost, "/api/orders", customer, map[string]interface{}{
		"items":           []map[string]interface{}{{"productId": productID, "quantity": 0}},
		"deliveryAddress": map[string]string{},
		"paymentMethod":   "cheque",
	})
	require.Equal(t, fiber.StatusBadRequest, resp.status)
	errs := resp.body["errors"].(map[string]interface{})
	assert.Contains(t, errs, "items[0].quantity")
	assert.Contains(t, errs, "deliveryAddress.city")
	assert.Contains(t, errs, "paymentMethod")

	resp = doJSON(t, a, fiber.MethodPost, "/api/orders", customer, map[string]interface{}{
		"items":           []map[string]interface{}{{"productId": productID, "quantity": 11}},
		"deliveryAddress": address,
		"paymentMethod":   "cod",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.status, "insufficient stock")

	resp = doJSON(t, a, fiber.MethodPost, "/api/orders", customer, order, handlers.IdempotencyKeyHeader, "checkout-1")
	require.Equal(t, fiber.StatusCreated, resp.status, resp.body)
	orderID := resp.data()["id"].(string)
	pricing := resp.data()["pricing"].(map[string]interface{})
	assert.InDelta(t, 60.0, pricing["subtotal"], 1e-9)
	assert.InDelta(t, 113.0, pricing["total"], 1e-9)

	resp = doJSON(t, a, fiber.MethodPost, "/api/orders", customer, order, handlers.IdempotencyKeyHeader, "checkout-1")
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, orderID, resp.data()["id"])

	resp = doJSON(t, a, fiber.MethodPut, "/api/orders/"+orderID+"/status", customer, map[string]string{"status": "preparing"})
	assert.Equal(t, fiber.StatusForbidden, resp.status)
	resp = doJSON(t, a, fiber.MethodPut, "/api/orders/"+orderID+"/status", pharmacy, map[string]string{"status": "shipped"})
	assert.Equal(t, fiber.StatusBadRequest, resp.status)

	for _, status := range []string{"confirmed", "preparing", "ready-for-pickup"} {
		resp = doJSON(t, a, fiber.MethodPut, "/api/orders/"+orderID+"/status", pharmacy, map[string]string{"status": status, "note": "step " + status})
		require.Equal(t, fiber.StatusOK, resp.status, resp.body)
	}

	// unapproved drivers cannot take orders
	resp = doJSON(t, a, fiber.MethodPut, "/api/orders/"+orderID+"/assign-driver", driver, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.status)
	resp = doJSON(t, a, fiber.MethodPut, "/api/admin/users/"+driverID+"/approve", customer, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.status)
	resp = doJSON(t, a, fiber.MethodPut, "/api/admin/users/"+driverID+"/approve", admin, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	driver = login(t, a, "driver@example.com", "password123")

	resp = doJSON(t, a, fiber.MethodGet, "/api/orders/available/orders", driver, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Len(t, resp.body["data"].([]interface{}), 1)

	resp = doJSON(t, a, fiber.MethodPut, "/api/orders/"+orderID+"/assign-driver", driver, nil)
	require.Equal(t, fiber.StatusOK, resp.status, resp.body)
	assert.Equal(t, driverID, resp.data()["driverId"])

	for _, status := range []string{"picked-up", "out-for-delivery", "delivered"} {
		resp = doJSON(t, a, fiber.MethodPut, "/api/orders/"+orderID+"/status", driver, map[string]string{"status": status})
		require.Equal(t, fiber.StatusOK, resp.status, resp.body)
	}
	assert.Equal(t, "completed", resp.data()["paymentStatus"])
	history := resp.data()["statusHistory"].([]interface{})
	assert.Len(t, history, 8)

	resp = doJSON(t, a, fiber.MethodPut, "/api/orders/"+orderID+"/cancel", customer, map[string]string{"reason": "late"})
	assert.Equal(t, fiber.StatusBadRequest, resp.status)

	resp = doJSON(t, a, fiber.MethodGet, "/api/orders?status=delivered", customer, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Len(t, resp.body["data"].([]interface{}), 1)
}

func TestOrderCancelRestoresStock(t *testing.T) {
	a := setupApp(t)
	pharmacy, _ := register(t, a, "pharmacy", "pharmacy@example.com")
	customer, _ := register(t, a, "customer", "customer@example.com")
	stranger, _ := register(t, a, "customer", "stranger@example.com")
	productID := createProduct(t, a, pharmacy, "Cetirizine 10mg", 12, 5)

	resp := doJSON(t, a, fiber.MethodPost, "/api/orders", customer, map[string]interface{}{
		"items":           []map[string]interface{}{{"productId": productID, "quantity": 3}},
		"deliveryAddress": address,
		"paymentMethod":   "upi",
	})
	require.Equal(t, fiber.StatusCreated, resp.status, resp.body)
	orderID := resp.data()["id"].(string)

	resp = doJSON(t, a, fiber.MethodGet, "/api/orders/"+orderID, stranger, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.status)
	resp = doJSON(t, a, fiber.MethodPut, "/api/orders/"+orderID+"/cancel", stranger, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.status)

	resp = doJSON(t, a, fiber.MethodGet, "/api/products/"+productID, "", nil)
	assert.EqualValues(t, 2, resp.data()["stock"].(map[string]interface{})["quantity"])

	resp = doJSON(t, a, fiber.MethodPut, "/api/orders/"+orderID+"/cancel", customer, map[string]string{"reason": "ordered by mistake"})
	require.Equal(t, fiber.StatusOK, resp.status, resp.body)
	assert.Equal(t, "cancelled", resp.data()["status"])
	assert.Equal(t, "customer", resp.data()["cancelledBy"])

	resp = doJSON(t, a, fiber.MethodGet, "/api/products/"+productID, "", nil)
	assert.EqualValues(t, 5, resp.data()["stock"].(map[string]interface{})["quantity"])

	resp = doJSON(t, a, fiber.MethodGet, "/api/orders/missing-id", customer, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.status)
}

func TestCartCheckoutEndpoints(t *testing.T) {
	a := setupApp(t)
	pharmacy, _ := register(t, a, "pharmacy", "pharmacy@example.com")
	customer, _ := register(t, a, "customer", "customer@example.com")
	productID := createProduct(t, a, pharmacy, "Cough syrup", 80, 10)

	resp := doJSON(t, a, fiber.MethodGet, "/api/cart", pharmacy, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.status)

	resp = doJSON(t, a, fiber.MethodPost, "/api/cart/items", customer, map[string]interface{}{"productId": productID, "quantity": 2})
	require.Equal(t, fiber.StatusOK, resp.status, resp.body)
	assert.EqualValues(t, 2, resp.data()["count"])
	assert.InDelta(t, 160.0, resp.data()["total"], 1e-9)

	resp = doJSON(t, a, fiber.MethodPut, "/api/cart/items/"+productID, customer, map[string]int{"quantity": 4})
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.EqualValues(t, 4, resp.data()["count"])

	checkout := map[string]interface{}{
		"deliveryAddress": address,
		"paymentMethod":   "card",
	}
	resp = doJSON(t, a, fiber.MethodPost, "/api/cart/checkout", customer, checkout, handlers.IdempotencyKeyHeader, "cart-1")
	require.Equal(t, fiber.StatusCreated, resp.status, resp.body)
	orderID := resp.data()["id"]
	items := resp.data()["items"].([]interface{})
	require.Len(t, items, 1)

	resp = doJSON(t, a, fiber.MethodPost, "/api/cart/checkout", customer, checkout, handlers.IdempotencyKeyHeader, "cart-1")
	require.Equal(t, fiber.StatusOK, resp.status, resp.body)
	assert.Equal(t, orderID, resp.data()["id"])

	resp = doJSON(t, a, fiber.MethodGet, "/api/cart", customer, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.EqualValues(t, 0, resp.data()["count"])

	resp = doJSON(t, a, fiber.MethodPost, "/api/cart/checkout", customer, map[string]interface{}{
		"deliveryAddress": address,
		"paymentMethod":   "card",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.status, "empty cart")
}

func TestDirectoryEndpoints(t *testing.T) {
	a := setupApp(t)
	_, pharmacyID := register(t, a, "pharmacy", "pharmacy@example.com")
	driver, _ := register(t, a, "driver", "driver@example.com")
	admin := login(t, a, adminEmail, adminPassword)

	resp := doJSON(t, a, fiber.MethodGet, "/api/pharmacies", "", nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Empty(t, resp.body["data"], "pending pharmacies are hidden")

	resp = doJSON(t, a, fiber.MethodPut, "/api/admin/users/"+pharmacyID+"/approve", admin, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	resp = doJSON(t, a, fiber.MethodGet, "/api/pharmacies", "", nil)
	assert.Len(t, resp.body["data"].([]interface{}), 1)

	resp = doJSON(t, a, fiber.MethodGet, "/api/admin/users?role=driver", admin, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Len(t, resp.body["data"].([]interface{}), 1)

	resp = doJSON(t, a, fiber.MethodPut, "/api/drivers/location", driver, map[string]float64{"latitude": 18.5, "longitude": 73.8})
	require.Equal(t, fiber.StatusOK, resp.status, resp.body)
	resp = doJSON(t, a, fiber.MethodPut, "/api/drivers/location", driver, map[string]float64{"latitude": 120, "longitude": 73.8})
	assert.Equal(t, fiber.StatusBadRequest, resp.status)
	resp = doJSON(t, a, fiber.MethodPut, "/api/drivers/availability", driver, map[string]bool{"isAvailable": true})
	assert.Equal(t, fiber.StatusForbidden, resp.status, "not approved yet")
}
