package service

import (
	"context"
	"errors"

	"medcart/internal/domain"
	"medcart/internal/repository"
)

// UserService профиль и адрес доставки
type UserService struct {
	users repository.UserRepository
	addrs repository.AddressRepository
}

func NewUserService(users repository.UserRepository, addrs repository.AddressRepository) *UserService {
	return &UserService{users: users, addrs: addrs}
}

// UpdateInfo обновляет имя и телефон вызывающего
func (s *UserService) UpdateInfo(ctx context.Context, actor domain.Actor, name, phone string) error {
	if actor.Role != domain.RoleUser && actor.Role != domain.RoleDoctor {
		return ErrForbidden
	}
	if name == "" && phone == "" {
		return ErrInvalidInput
	}
	u, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if name != "" {
		u.Name = name
	}
	if phone != "" {
		u.Phone = phone
	}
	return s.users.Update(ctx, u)
}

// GetAddress адрес вызывающего
func (s *UserService) GetAddress(ctx context.Context, actor domain.Actor) (*domain.Address, error) {
	if actor.Guest() {
		return nil, ErrUnauthorized
	}
	return s.addrs.GetByUserID(ctx, actor.UserID)
}

// SaveAddress создаёт или перезаписывает адрес вызывающего
func (s *UserService) SaveAddress(ctx context.Context, actor domain.Actor, a domain.Address) (*domain.Address, error) {
	if actor.Guest() {
		return nil, ErrUnauthorized
	}
	if a.Line1 == "" || a.City == "" || a.Zip == "" {
		return nil, ErrInvalidInput
	}
	a.UserID = actor.UserID
	if err := s.addrs.Update(ctx, &a); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		if err := s.addrs.Create(ctx, &a); err != nil {
			return nil, err
		}
	}
	return &a, nil
}
