package service

import (
	"context"
	"errors"
	"testing"

	"medcart/internal/domain"
	"medcart/internal/gateway"
	"medcart/internal/repository"
)

func setupPayment(t *testing.T) (*ProductService, *OrderService, *PaymentService, *gateway.Fake) {
	t.Helper()
	store := repository.NewMemoryStore()
	ordersRepo := repository.NewMemoryOrders(store)
	tx := repository.NewMemoryTx(store)
	ps := NewProductService(store, repository.NewMemoryCategories(store))
	os := NewOrderService(store, ordersRepo, tx)
	gw := gateway.NewFake()
	pay := NewPaymentService(ordersRepo, tx, gw)
	return ps, os, pay, gw
}

func createTestOrder(t *testing.T, ps *ProductService, os *OrderService) *domain.Order {
	t.Helper()
	p := seedProduct(t, ps, "A", 25, 10)
	o, err := os.CreateOrder(context.Background(), userActor, []domain.OrderItem{{ProductID: p.ID, Quantity: 2}})
	if err != nil {
		t.Fatal(err)
	}
	return o
}

func TestCreateIntent(t *testing.T) {
	ctx := context.Background()
	ps, os, pay, _ := setupPayment(t)
	o := createTestOrder(t, ps, os)

	if _, err := pay.CreateIntent(ctx, domain.Actor{}, "abc"); err != ErrInvalidInput {
		t.Fatalf("3-char code must be invalid, got %v", err)
	}
	if _, err := pay.CreateIntent(ctx, domain.Actor{}, "ZZZZ"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("unknown code must be not found, got %v", err)
	}

	h, err := pay.CreateIntent(ctx, userActor, o.Code)
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if h.IntentID == "" || h.ClientSecret == "" {
		t.Fatalf("empty handle: %+v", h)
	}
}

func TestConfirmIntent_Flow(t *testing.T) {
	ctx := context.Background()
	ps, os, pay, gw := setupPayment(t)
	o := createTestOrder(t, ps, os)

	h, err := pay.CreateIntent(ctx, domain.Actor{}, o.Code)
	if err != nil {
		t.Fatal(err)
	}

	// шлюз ещё не списал деньги: ошибка шлюза, заказ не меняется
	if _, err := pay.ConfirmIntent(ctx, domain.Actor{}, h.IntentID); err == nil {
		t.Fatalf("expected gateway error before success")
	}
	got, _ := os.GetOrder(ctx, staffActor, o.ID)
	if got.Status != domain.OrderStatusCreated {
		t.Fatalf("order mutated on gateway failure: %v", got.Status)
	}

	gw.Succeed(h.IntentID)
	upd, err := pay.ConfirmIntent(ctx, domain.Actor{}, h.IntentID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if upd.Status != domain.OrderStatusPaid {
		t.Fatalf("expected PAID, got %v", upd.Status)
	}
	if upd.PaidBy != domain.GuestPayer {
		t.Fatalf("guest payer expected, got %q", upd.PaidBy)
	}
}

func TestConfirmIntent_Idempotent(t *testing.T) {
	ctx := context.Background()
	ps, os, pay, gw := setupPayment(t)
	o := createTestOrder(t, ps, os)

	h, _ := pay.CreateIntent(ctx, userActor, o.Code)
	gw.Succeed(h.IntentID)

	first, err := pay.ConfirmIntent(ctx, userActor, h.IntentID)
	if err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	if first.PaidBy != userActor.Email {
		t.Fatalf("payer expected %q, got %q", userActor.Email, first.PaidBy)
	}

	second, err := pay.ConfirmIntent(ctx, userActor, h.IntentID)
	if err != nil {
		t.Fatalf("second confirm must be a no-op success: %v", err)
	}
	if second.Status != domain.OrderStatusPaid || second.ID != first.ID {
		t.Fatalf("idempotent confirm mismatch: %+v", second)
	}
}

func TestCreateIntent_Supersession(t *testing.T) {
	ctx := context.Background()
	ps, os, pay, gw := setupPayment(t)
	o := createTestOrder(t, ps, os)

	h1, err := pay.CreateIntent(ctx, userActor, o.Code)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := pay.CreateIntent(ctx, userActor, o.Code)
	if err != nil {
		t.Fatalf("repeated create intent must supersede: %v", err)
	}
	if h1.IntentID == h2.IntentID {
		t.Fatalf("expected a fresh intent id")
	}

	// замещённый интент больше не подтверждаем
	gw.Succeed(h1.IntentID)
	if _, err := pay.ConfirmIntent(ctx, userActor, h1.IntentID); !errors.Is(err, repository.ErrNotFound) && !errors.Is(err, ErrInvalidState) {
		t.Fatalf("superseded intent confirm must fail, got %v", err)
	}
	got, _ := os.GetOrder(ctx, staffActor, o.ID)
	if got.Status != domain.OrderStatusCreated {
		t.Fatalf("order mutated by superseded intent: %v", got.Status)
	}

	gw.Succeed(h2.IntentID)
	upd, err := pay.ConfirmIntent(ctx, userActor, h2.IntentID)
	if err != nil || upd.Status != domain.OrderStatusPaid {
		t.Fatalf("active intent confirm: %v", err)
	}
}

func TestCreateIntent_NotPayable(t *testing.T) {
	ctx := context.Background()
	ps, os, pay, gw := setupPayment(t)
	o := createTestOrder(t, ps, os)

	h, _ := pay.CreateIntent(ctx, userActor, o.Code)
	gw.Succeed(h.IntentID)
	if _, err := pay.ConfirmIntent(ctx, userActor, h.IntentID); err != nil {
		t.Fatal(err)
	}

	// оплаченный заказ больше не принимает интентов
	if _, err := pay.CreateIntent(ctx, userActor, o.Code); err != ErrInvalidState {
		t.Fatalf("expected invalid state, got %v", err)
	}
}
