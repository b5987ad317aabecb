package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"medcart/internal/domain"
	"medcart/internal/repository"
)

func setupPS(t *testing.T) *ProductService {
	t.Helper()
	store := repository.NewMemoryStore()
	return NewProductService(store, repository.NewMemoryCategories(store))
}

func TestProduct_Create_Valid(t *testing.T) {
	ctx := context.Background()
	ps := setupPS(t)
	p, err := ps.Create(ctx, staffActor, domain.Product{Name: "Aspirin", SKU: "ASP-1", Price: decimal.NewFromInt(100), Stock: 10})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if p.ID == 0 {
		t.Fatalf("expected id assigned")
	}
}

func TestProduct_Create_Invalid(t *testing.T) {
	ctx := context.Background()
	ps := setupPS(t)
	one := decimal.NewFromInt(1)
	if _, err := ps.Create(ctx, staffActor, domain.Product{Name: "", SKU: "S", Price: one, Stock: 1}); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := ps.Create(ctx, staffActor, domain.Product{Name: "N", SKU: "", Price: one, Stock: 1}); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := ps.Create(ctx, staffActor, domain.Product{Name: "N", SKU: "S", Price: decimal.NewFromInt(-1), Stock: 1}); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := ps.Create(ctx, staffActor, domain.Product{Name: "N", SKU: "S", Price: one, Stock: -1}); err == nil {
		t.Fatalf("expected validation error")
	}
	// каталог меняет только персонал
	if _, err := ps.Create(ctx, userActor, domain.Product{Name: "N", SKU: "S", Price: one, Stock: 1}); err != ErrForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestProduct_Update_Get_Delete(t *testing.T) {
	ctx := context.Background()
	ps := setupPS(t)
	p, _ := ps.Create(ctx, staffActor, domain.Product{Name: "A", SKU: "S1", Price: decimal.NewFromInt(10), Stock: 5})

	// get
	got, err := ps.GetByID(ctx, p.ID)
	if err != nil || got.ID != p.ID {
		t.Fatalf("get failed: %v", err)
	}

	// update
	p.Name = "A+"
	p.Price = decimal.NewFromInt(12)
	p.Stock = 7
	up, err := ps.Update(ctx, staffActor, *p)
	if err != nil {
		t.Fatalf("update err: %v", err)
	}
	if up.Name != "A+" || !up.Price.Equal(decimal.NewFromInt(12)) || up.Stock != 7 {
		t.Fatalf("not updated")
	}

	// delete
	if err := ps.Delete(ctx, userActor, p.ID); err != ErrForbidden {
		t.Fatalf("user delete must be forbidden, got %v", err)
	}
	if err := ps.Delete(ctx, staffActor, p.ID); err != nil {
		t.Fatalf("delete err: %v", err)
	}
	if _, err := ps.GetByID(ctx, p.ID); err == nil {
		t.Fatalf("expected not found after delete")
	}
}

func TestProduct_List_Filtering(t *testing.T) {
	ctx := context.Background()
	ps := setupPS(t)
	must := func(p *domain.Product, err error) *domain.Product {
		if err != nil {
			t.Fatal(err)
		}
		return p
	}
	_ = must(ps.Create(ctx, staffActor, domain.Product{Name: "Aspirin", SKU: "S1", Price: decimal.NewFromInt(100), Stock: 5}))
	_ = must(ps.Create(ctx, staffActor, domain.Product{Name: "Paracetamol", SKU: "S2", Price: decimal.NewFromInt(50), Stock: 5}))
	_ = must(ps.Create(ctx, staffActor, domain.Product{Name: "Ibuprofen", SKU: "S3", Price: decimal.NewFromInt(150), Stock: 5}))

	// substring
	list, err := ps.List(ctx, repository.ProductFilter{NameSubstring: "in"})
	if err != nil {
		t.Fatalf("list err: %v", err)
	}
	if len(list) == 0 {
		t.Fatalf("expected some items")
	}

	// min price
	min := 100.0
	list, err = ps.List(ctx, repository.ProductFilter{MinPrice: &min})
	if err != nil {
		t.Fatalf("list err: %v", err)
	}
	for _, p := range list {
		if p.Price.InexactFloat64() < min {
			t.Fatalf("price filter failed")
		}
	}

	// max price
	max := 100.0
	list, err = ps.List(ctx, repository.ProductFilter{MaxPrice: &max})
	if err != nil {
		t.Fatalf("list err: %v", err)
	}
	for _, p := range list {
		if p.Price.InexactFloat64() > max {
			t.Fatalf("price filter failed")
		}
	}
}

func TestCategories(t *testing.T) {
	ctx := context.Background()
	ps := setupPS(t)

	if _, err := ps.CreateCategory(ctx, userActor, domain.Category{Name: "Painkillers"}); err != ErrForbidden {
		t.Fatalf("user create category must be forbidden, got %v", err)
	}
	cat, err := ps.CreateCategory(ctx, adminActor, domain.Category{Name: "Painkillers"})
	if err != nil || cat.ID == 0 {
		t.Fatalf("create category: %v", err)
	}
	if _, err := ps.CreateCategory(ctx, adminActor, domain.Category{}); err != ErrInvalidInput {
		t.Fatalf("empty name must fail, got %v", err)
	}

	list, err := ps.ListCategories(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("list categories: %v %v", list, err)
	}

	// товар с несуществующей категорией отклоняется
	if _, err := ps.Create(ctx, staffActor, domain.Product{Name: "X", SKU: "SX", Price: decimal.NewFromInt(1), Stock: 1, CategoryID: 42}); err == nil {
		t.Fatalf("unknown category must fail")
	}
}
