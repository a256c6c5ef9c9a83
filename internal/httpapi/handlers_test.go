package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lojapos/backend/internal/cache"
	"lojapos/backend/internal/domain"
	"lojapos/backend/internal/service"
	"lojapos/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, cache.NoopFeeScheduleCache{}, 5*time.Minute)
	auth := NewAuthManager("test-secret-key", time.Hour)

	return New(svc, auth, "*")
}

// loginAs obtains a bearer token through the real login endpoint.
func loginAs(t *testing.T, handler http.Handler, username, password string) string {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}

	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.AccessToken
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	code, _ := body["code"].(string)
	return code
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	token := loginAs(t, handler, "admin", "admin123")
	if token == "" {
		t.Fatalf("expected an access token")
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if code := errorCode(t, rec); code != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED code, got %q", code)
	}
}

func TestHandleLogin_RateLimit(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	// The loginLimiter allows 5 attempts per minute.
	// Fire 6 requests from the same "IP" (httptest uses RemoteAddr "192.0.2.1:1234").
	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "badpass",
	})

	var lastCode int
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		lastCode = rec.Code
	}

	if lastCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after 6 attempts, got %d", lastCode)
	}
}

func TestHandleCatalog_NoAuthRequired(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/catalog", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["products"] == nil {
		t.Fatalf("expected products key in response, got %v", body)
	}
}

func TestHandleProducts_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleProducts_WithValidToken(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "admin", "admin123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["products"] == nil {
		t.Fatalf("expected products key in response, got %v", body)
	}
}

func TestHandleCheckout_Success(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "operator", "operator123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/checkout", token, domain.CheckoutRequest{
		Items: []domain.CartItem{
			{ProductID: "prod-arroz-01", Qty: 2},
		},
		Payments: []domain.CartPayment{
			{PaymentMethodID: "pm-cash", AmountCents: 5580},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.CheckoutResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode checkout response: %v", err)
	}
	if resp.Sale.TotalCents != 5580 {
		t.Fatalf("expected total 5580, got %d", resp.Sale.TotalCents)
	}
	if resp.Sale.Code == "" {
		t.Fatalf("expected a sale code")
	}
	if len(resp.Items) != 1 || len(resp.Payments) != 1 {
		t.Fatalf("expected 1 item and 1 payment, got %d/%d", len(resp.Items), len(resp.Payments))
	}
}

func TestHandleCheckout_PaymentMismatch(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "operator", "operator123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/checkout", token, domain.CheckoutRequest{
		Items: []domain.CartItem{
			{ProductID: "prod-arroz-01", Qty: 1},
		},
		Payments: []domain.CartPayment{
			{PaymentMethodID: "pm-cash", AmountCents: 100},
		},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if code := errorCode(t, rec); code != "PAYMENT_MISMATCH" {
		t.Fatalf("expected PAYMENT_MISMATCH code, got %q", code)
	}
}

func TestHandleCheckout_InsufficientStock(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "operator", "operator123")

	// Cafe seeds with 60 units; ask for 61 and pay the matching amount.
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/checkout", token, domain.CheckoutRequest{
		Items: []domain.CartItem{
			{ProductID: "prod-cafe-01", Qty: 61},
		},
		Payments: []domain.CartPayment{
			{PaymentMethodID: "pm-cash", AmountCents: 61 * 2190},
		},
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if code := errorCode(t, rec); code != "INSUFFICIENT_STOCK" {
		t.Fatalf("expected INSUFFICIENT_STOCK code, got %q", code)
	}
}

func TestHandleCheckout_UnknownProduct(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "operator", "operator123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/checkout", token, domain.CheckoutRequest{
		Items: []domain.CartItem{
			{ProductID: "prod-missing", Qty: 1},
		},
		Payments: []domain.CartPayment{
			{PaymentMethodID: "pm-cash", AmountCents: 100},
		},
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if code := errorCode(t, rec); code != "PRODUCT_NOT_FOUND" {
		t.Fatalf("expected PRODUCT_NOT_FOUND code, got %q", code)
	}
}

func TestHandleDailyReport_OperatorForbidden(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "operator", "operator123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/reports/daily", token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for operator on admin route, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN code, got %q", code)
	}
}

func TestHandleProductPatch_AdminOnly(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	operatorToken := loginAs(t, handler, "operator", "operator123")
	rec := doJSON(t, handler, http.MethodPatch, "/api/v1/products/prod-arroz-01", operatorToken, map[string]any{
		"min_stock": 25,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for operator, got %d", rec.Code)
	}

	adminToken := loginAs(t, handler, "admin", "admin123")
	rec = doJSON(t, handler, http.MethodPatch, "/api/v1/products/prod-arroz-01", adminToken, map[string]any{
		"min_stock": 25,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Product domain.Product `json:"product"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Product.MinStock != 25 {
		t.Fatalf("expected min stock 25, got %d", body.Product.MinStock)
	}
}

func TestHandleCheckout_RejectsUnknownFields(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "operator", "operator123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/checkout", token, map[string]any{
		"items":    []map[string]any{{"product_id": "prod-arroz-01", "qty": 1}},
		"payments": []map[string]any{{"payment_method_id": "pm-cash", "amount_cents": 2790}},
		"surprise": true,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on unknown field, got %d", rec.Code)
	}
}

func TestHandleProductGet_OperatorCanRead(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "operator", "operator123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products/prod-arroz-01", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Product domain.Product `json:"product"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Product.SKU != "ARZ-5KG" {
		t.Fatalf("expected ARZ-5KG, got %q", body.Product.SKU)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/products/prod-nao-existe", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown product, got %d", rec.Code)
	}
}

func TestHandleCatalogItem_NoAuthRequired(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/catalog/ARZ-5KG", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Product domain.Product `json:"product"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Product.SalePriceCents != 2790 {
		t.Fatalf("expected price 2790, got %d", body.Product.SalePriceCents)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/catalog/NOPE-000", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown sku, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "PRODUCT_NOT_FOUND" {
		t.Fatalf("expected PRODUCT_NOT_FOUND, got %s", code)
	}
}

func TestHandlePasswordReset_AdminOnly(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	operatorToken := loginAs(t, handler, "operator", "operator123")
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/users/password", operatorToken, map[string]string{
		"username":     "operator",
		"new_password": "nova-senha-123",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for operator, got %d", rec.Code)
	}

	adminToken := loginAs(t, handler, "admin", "admin123")
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/users/password", adminToken, map[string]string{
		"username":     "operator",
		"new_password": "nova-senha-123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}

	// The old credential must stop working, the new one must log in.
	payload, _ := json.Marshal(map[string]string{"username": "operator", "password": "operator123"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected old password to be rejected, got %d", recorder.Code)
	}

	loginAs(t, handler, "operator", "nova-senha-123")
}

func TestHandleCheckout_IdempotentRetry(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "operator", "operator123")

	payload := map[string]any{
		"idempotency_key": "terminal-9-xyz",
		"items":           []map[string]any{{"product_id": "prod-arroz-01", "qty": 2}},
		"payments":        []map[string]any{{"payment_method_id": "pm-cash", "amount_cents": 5580}},
	}

	first := doJSON(t, handler, http.MethodPost, "/api/v1/checkout", token, payload)
	if first.Code != http.StatusCreated {
		t.Fatalf("first checkout: expected 201, got %d %s", first.Code, first.Body.String())
	}
	second := doJSON(t, handler, http.MethodPost, "/api/v1/checkout", token, payload)
	if second.Code != http.StatusCreated {
		t.Fatalf("retry: expected 201, got %d %s", second.Code, second.Body.String())
	}

	var firstResp, secondResp domain.CheckoutResponse
	if err := json.NewDecoder(first.Body).Decode(&firstResp); err != nil {
		t.Fatalf("decode first response: %v", err)
	}
	if err := json.NewDecoder(second.Body).Decode(&secondResp); err != nil {
		t.Fatalf("decode second response: %v", err)
	}
	if secondResp.Sale.ID != firstResp.Sale.ID {
		t.Fatalf("retry created a second sale: %s vs %s", secondResp.Sale.ID, firstResp.Sale.ID)
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products/prod-arroz-01", token, nil)
	var body struct {
		Product domain.Product `json:"product"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode product: %v", err)
	}
	if body.Product.Stock != 78 {
		t.Fatalf("retry charged the cart twice: stock %d, want 78", body.Product.Stock)
	}
}
