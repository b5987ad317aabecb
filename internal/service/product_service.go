package service

import (
	"context"
	"errors"

	"medcart/internal/domain"
	"medcart/internal/repository"
)

// ProductService инкапсулирует бизнес-логику каталога: товары и категории
type ProductService struct {
	repo       repository.ProductRepository
	categories repository.CategoryRepository
}

func NewProductService(repo repository.ProductRepository, categories repository.CategoryRepository) *ProductService {
	return &ProductService{repo: repo, categories: categories}
}

var ErrInvalidInput = errors.New("invalid input")

func (s *ProductService) Create(ctx context.Context, actor domain.Actor, p domain.Product) (*domain.Product, error) {
	if !actor.Role.Staff() {
		return nil, ErrForbidden
	}
	if p.Name == "" || p.SKU == "" || p.Price.IsNegative() || p.Stock < 0 {
		return nil, ErrInvalidInput
	}
	if p.CategoryID != 0 {
		if _, err := s.categories.GetByID(ctx, p.CategoryID); err != nil {
			return nil, err
		}
	}
	cp := p
	if err := s.repo.Create(ctx, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (s *ProductService) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *ProductService) Update(ctx context.Context, actor domain.Actor, p domain.Product) (*domain.Product, error) {
	if !actor.Role.Staff() {
		return nil, ErrForbidden
	}
	if p.ID <= 0 || p.Name == "" || p.Price.IsNegative() || p.Stock < 0 {
		return nil, ErrInvalidInput
	}
	cp := p
	if err := s.repo.Update(ctx, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (s *ProductService) Delete(ctx context.Context, actor domain.Actor, id int64) error {
	if !actor.Role.Staff() {
		return ErrForbidden
	}
	if id <= 0 {
		return ErrInvalidInput
	}
	return s.repo.Delete(ctx, id)
}

func (s *ProductService) List(ctx context.Context, f repository.ProductFilter) ([]domain.Product, error) {
	return s.repo.List(ctx, f)
}

// CreateCategory доступно только персоналу
func (s *ProductService) CreateCategory(ctx context.Context, actor domain.Actor, c domain.Category) (*domain.Category, error) {
	if !actor.Role.Staff() {
		return nil, ErrForbidden
	}
	if c.Name == "" {
		return nil, ErrInvalidInput
	}
	cp := c
	if err := s.categories.Create(ctx, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

// ListCategories открытый список категорий каталога
func (s *ProductService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.categories.List(ctx)
}
