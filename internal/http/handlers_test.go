package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"medcart/internal/domain"
	"medcart/internal/gateway"
	"medcart/internal/notify"
	"medcart/internal/repository"
	"medcart/internal/service"
)

const (
	staffToken  = "staff-token"
	userToken   = "user-token"
	doctorToken = "doctor-token"
)

type testEnv struct {
	srv   *Server
	gw    *gateway.Fake
	email *notify.FakeEmail
	sms   *notify.FakeSMS
}

func setupServer(t *testing.T) *testEnv {
	t.Helper()
	store := repository.NewMemoryStore()
	users := repository.NewMemoryUsers(store)
	sessions := repository.NewMemorySessions(store)
	addrs := repository.NewMemoryAddresses(store)
	categories := repository.NewMemoryCategories(store)
	ordersRepo := repository.NewMemoryOrders(store)
	tx := repository.NewMemoryTx(store)

	gw := gateway.NewFake()
	email := &notify.FakeEmail{}
	sms := &notify.FakeSMS{}
	const baseURL = "https://pharmacy.example"

	authSvc := service.NewAuthService(users, sessions, email, baseURL)
	usersSvc := service.NewUserService(users, addrs)
	productsSvc := service.NewProductService(store, categories)
	ordersSvc := service.NewOrderService(store, ordersRepo, tx)
	paymentsSvc := service.NewPaymentService(ordersRepo, tx, gw)
	notifySvc := service.NewNotifyService(email, sms, baseURL)

	// seed accounts with ready sessions so tests don't go through login
	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	seed := []struct {
		email string
		role  domain.Role
		token string
	}{
		{"user@example.com", domain.RoleUser, userToken},
		{"doctor@example.com", domain.RoleDoctor, doctorToken},
		{"staff@example.com", domain.RolePharmacyStaff, staffToken},
	}
	for _, s := range seed {
		u := domain.User{Email: s.email, Role: s.role, PasswordHash: string(hash), Verified: true}
		if err := users.Create(ctx, &u); err != nil {
			t.Fatal(err)
		}
		sess := domain.Session{Token: s.token, UserID: u.ID, Role: u.Role, Email: u.Email, ExpiresAt: time.Now().Add(time.Hour)}
		if err := sessions.Create(ctx, &sess); err != nil {
			t.Fatal(err)
		}
	}

	return &testEnv{
		srv:   NewServer(authSvc, usersSvc, productsSvc, ordersSvc, paymentsSvc, notifySvc),
		gw:    gw,
		email: email,
		sms:   sms,
	}
}

func doJSON(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
}

func TestAuthFlow(t *testing.T) {
	env := setupServer(t)
	s := env.srv

	w := doJSON(t, s, http.MethodPost, "/api/v1/register", "", map[string]any{
		"email": "new@example.com", "password": "password123",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register code %v: %v", w.Code, w.Body.String())
	}
	if len(env.email.Sent) == 0 {
		t.Fatalf("expected verification email")
	}

	w = doJSON(t, s, http.MethodPost, "/api/v1/login", "", map[string]any{
		"email": "new@example.com", "password": "password123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login code %v", w.Code)
	}
	var sess domain.Session
	decode(t, w, &sess)
	if sess.Token == "" || sess.Role != domain.RoleUser {
		t.Fatalf("bad session: %+v", sess)
	}

	// wrong password
	w = doJSON(t, s, http.MethodPost, "/api/v1/login", "", map[string]any{
		"email": "new@example.com", "password": "wrong-password",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", w.Code)
	}

	// session works, logout kills it
	if w = doJSON(t, s, http.MethodGet, "/api/v1/user/orders", sess.Token, nil); w.Code != http.StatusOK {
		t.Fatalf("authed list code %v", w.Code)
	}
	if w = doJSON(t, s, http.MethodPost, "/api/v1/logout", sess.Token, nil); w.Code != http.StatusNoContent {
		t.Fatalf("logout code %v", w.Code)
	}
	if w = doJSON(t, s, http.MethodGet, "/api/v1/user/orders", sess.Token, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %v", w.Code)
	}
}

func TestProductFlow(t *testing.T) {
	env := setupServer(t)
	s := env.srv

	// create requires staff
	body := map[string]any{"name": "Aspirin", "sku": "S1", "price": "10", "stock": 5}
	w := doJSON(t, s, http.MethodPost, "/api/v1/products", userToken, body)
	if w.Code != http.StatusForbidden {
		t.Fatalf("user create code %v", w.Code)
	}
	w = doJSON(t, s, http.MethodPost, "/api/v1/products", staffToken, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create code %v: %v", w.Code, w.Body.String())
	}

	// get is open
	w = doJSON(t, s, http.MethodGet, "/api/v1/products/1", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get code %v", w.Code)
	}

	// update
	w = doJSON(t, s, http.MethodPut, "/api/v1/products/1", staffToken, map[string]any{
		"name": "A+", "sku": "S1", "price": "12", "stock": 7,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update code %v: %v", w.Code, w.Body.String())
	}

	// list
	w = doJSON(t, s, http.MethodGet, "/api/v1/products?q=a", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list code %v", w.Code)
	}

	// categories
	w = doJSON(t, s, http.MethodPost, "/api/v1/category", staffToken, map[string]any{"name": "Painkillers"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create category code %v", w.Code)
	}
	w = doJSON(t, s, http.MethodGet, "/api/v1/category", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list categories code %v", w.Code)
	}

	// delete
	w = doJSON(t, s, http.MethodDelete, "/api/v1/products/1", staffToken, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete code %v", w.Code)
	}
}

// Полный сценарий: заказ, оплата по коду, выдача персоналом.
func TestOrderPaymentFlow(t *testing.T) {
	env := setupServer(t)
	s := env.srv

	w := doJSON(t, s, http.MethodPost, "/api/v1/products", staffToken, map[string]any{
		"name": "Aspirin", "sku": "S1", "price": "10", "stock": 5,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create product %v", w.Code)
	}

	// user builds an order
	w = doJSON(t, s, http.MethodPost, "/api/v1/orders", userToken, map[string]any{
		"items": []map[string]any{{"product_id": 1, "quantity": 3}},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create order %v: %v", w.Code, w.Body.String())
	}
	var order domain.Order
	decode(t, w, &order)
	if order.Status != domain.OrderStatusCreated || len(order.Code) != domain.OrderCodeLength {
		t.Fatalf("bad order: %+v", order)
	}

	// guest looks the order up by code
	w = doJSON(t, s, http.MethodGet, "/api/v1/payments/order-by-code?code="+order.Code, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("order by code %v", w.Code)
	}

	// guest creates the intent
	w = doJSON(t, s, http.MethodPost, "/api/v1/payments/create", "", map[string]any{"orderCode": order.Code})
	if w.Code != http.StatusOK {
		t.Fatalf("create intent %v: %v", w.Code, w.Body.String())
	}
	var handle struct {
		PaymentIntentID string `json:"payment_intent_id"`
		ClientSecret    string `json:"client_secret"`
	}
	decode(t, w, &handle)
	if handle.PaymentIntentID == "" || handle.ClientSecret == "" {
		t.Fatalf("bad handle: %+v", handle)
	}

	// confirm before the gateway charged the card
	w = doJSON(t, s, http.MethodPost, "/api/v1/payments/confirm", "", map[string]any{"paymentIntentId": handle.PaymentIntentID})
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %v: %v", w.Code, w.Body.String())
	}

	env.gw.Succeed(handle.PaymentIntentID)
	w = doJSON(t, s, http.MethodPost, "/api/v1/payments/confirm", "", map[string]any{"paymentIntentId": handle.PaymentIntentID})
	if w.Code != http.StatusOK {
		t.Fatalf("confirm %v: %v", w.Code, w.Body.String())
	}
	var paid domain.Order
	decode(t, w, &paid)
	if paid.Status != domain.OrderStatusPaid || paid.PaidBy != domain.GuestPayer {
		t.Fatalf("bad paid order: %+v", paid)
	}

	// user may not fulfill
	w = doJSON(t, s, http.MethodPost, "/api/v1/staff/orders/1/fulfill", userToken, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", w.Code)
	}

	// staff fulfills
	w = doJSON(t, s, http.MethodPost, "/api/v1/staff/orders/1/fulfill", staffToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("fulfill %v: %v", w.Code, w.Body.String())
	}
	var done domain.Order
	decode(t, w, &done)
	if done.Status != domain.OrderStatusFulfilled {
		t.Fatalf("status %v", done.Status)
	}

	// second fulfill is an invalid transition
	w = doJSON(t, s, http.MethodPost, "/api/v1/staff/orders/1/fulfill", staffToken, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", w.Code)
	}
}

func TestRefundRequiresComment(t *testing.T) {
	env := setupServer(t)
	s := env.srv

	doJSON(t, s, http.MethodPost, "/api/v1/products", staffToken, map[string]any{
		"name": "A", "sku": "S1", "price": "1", "stock": 2,
	})
	w := doJSON(t, s, http.MethodPost, "/api/v1/orders", userToken, map[string]any{
		"items": []map[string]any{{"product_id": 1, "quantity": 1}},
	})
	var order domain.Order
	decode(t, w, &order)

	w = doJSON(t, s, http.MethodPost, "/api/v1/payments/create", "", map[string]any{"orderCode": order.Code})
	var handle struct {
		PaymentIntentID string `json:"payment_intent_id"`
	}
	decode(t, w, &handle)
	env.gw.Succeed(handle.PaymentIntentID)
	if w = doJSON(t, s, http.MethodPost, "/api/v1/payments/confirm", "", map[string]any{"paymentIntentId": handle.PaymentIntentID}); w.Code != http.StatusOK {
		t.Fatalf("confirm %v", w.Code)
	}

	// empty body -> 400, no state change
	w = doJSON(t, s, http.MethodPost, "/api/v1/staff/orders/1/refund", staffToken, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", w.Code)
	}
	w = doJSON(t, s, http.MethodPost, "/api/v1/staff/orders/1/refund", staffToken, map[string]any{"comment": "damaged on arrival"})
	if w.Code != http.StatusOK {
		t.Fatalf("refund %v: %v", w.Code, w.Body.String())
	}
	var refunded domain.Order
	decode(t, w, &refunded)
	if refunded.Status != domain.OrderStatusRefunded || refunded.StaffComment == "" {
		t.Fatalf("bad refunded order: %+v", refunded)
	}
}

func TestCancelOrder(t *testing.T) {
	env := setupServer(t)
	s := env.srv

	doJSON(t, s, http.MethodPost, "/api/v1/products", staffToken, map[string]any{
		"name": "A", "sku": "S1", "price": "1", "stock": 2,
	})
	w := doJSON(t, s, http.MethodPost, "/api/v1/orders", userToken, map[string]any{
		"items": []map[string]any{{"product_id": 1, "quantity": 1}},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create order %v", w.Code)
	}

	// doctor may cancel on behalf of the patient
	w = doJSON(t, s, http.MethodPost, "/api/v1/orders/1/cancel", doctorToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("doctor cancel %v: %v", w.Code, w.Body.String())
	}
	// cancelled order cannot be cancelled again
	w = doJSON(t, s, http.MethodPost, "/api/v1/orders/1/cancel", userToken, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", w.Code)
	}
}

func TestPaymentLinks(t *testing.T) {
	env := setupServer(t)
	s := env.srv

	doJSON(t, s, http.MethodPost, "/api/v1/products", staffToken, map[string]any{
		"name": "A", "sku": "S1", "price": "1", "stock": 2,
	})
	w := doJSON(t, s, http.MethodPost, "/api/v1/orders", userToken, map[string]any{
		"items": []map[string]any{{"product_id": 1, "quantity": 1}},
	})
	var order domain.Order
	decode(t, w, &order)

	w = doJSON(t, s, http.MethodPost, "/api/v1/send-payment-link/email", "", map[string]any{
		"email": "pay@example.com", "code": order.Code,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("email link %v: %v", w.Code, w.Body.String())
	}
	if len(env.email.Sent) == 0 {
		t.Fatalf("expected email sent")
	}

	// non-US number is rejected before the vendor is called
	w = doJSON(t, s, http.MethodPost, "/api/v1/send-payment-link/sms", "", map[string]any{
		"phone": "+447911123456", "code": order.Code,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", w.Code)
	}
	if len(env.sms.Sent) != 0 {
		t.Fatalf("sms must not be sent")
	}

	w = doJSON(t, s, http.MethodPost, "/api/v1/send-payment-link/sms", "", map[string]any{
		"phone": "+12025550123", "code": order.Code,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("sms link %v: %v", w.Code, w.Body.String())
	}
	if len(env.sms.Sent) != 1 {
		t.Fatalf("expected one sms")
	}
}

func TestHTTP_BadRequests(t *testing.T) {
	env := setupServer(t)
	s := env.srv

	// invalid product body
	w := doJSON(t, s, http.MethodPost, "/api/v1/products", staffToken, map[string]any{"name": ""})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", w.Code)
	}

	// invalid id
	w = doJSON(t, s, http.MethodGet, "/api/v1/products/abc", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", w.Code)
	}

	// missing product maps to 400 as well
	w = doJSON(t, s, http.MethodGet, "/api/v1/products/999", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", w.Code)
	}

	// malformed order code
	w = doJSON(t, s, http.MethodGet, "/api/v1/payments/order-by-code?code=abc", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", w.Code)
	}

	// orders require auth
	w = doJSON(t, s, http.MethodPost, "/api/v1/orders", "", map[string]any{
		"items": []map[string]any{{"product_id": 1, "quantity": 1}},
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", w.Code)
	}
}

func TestUserProfile(t *testing.T) {
	env := setupServer(t)
	s := env.srv

	// no address yet
	w := doJSON(t, s, http.MethodGet, "/api/v1/user/address", userToken, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", w.Code)
	}

	w = doJSON(t, s, http.MethodPost, "/api/v1/user/address", userToken, map[string]any{
		"line1": "1 Main St", "city": "Springfield", "zip": "12345",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("save address %v: %v", w.Code, w.Body.String())
	}
	w = doJSON(t, s, http.MethodGet, "/api/v1/user/address", userToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get address %v", w.Code)
	}
	var a domain.Address
	decode(t, w, &a)
	if a.Line1 != "1 Main St" {
		t.Fatalf("bad address: %+v", a)
	}

	w = doJSON(t, s, http.MethodPost, "/api/v1/user/update-info", userToken, map[string]any{
		"name": "John", "phone": "+12025550123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update info %v: %v", w.Code, w.Body.String())
	}
}
