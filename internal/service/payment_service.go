package service

import (
	"context"

	"github.com/shopspring/decimal"

	"medcart/internal/domain"
	"medcart/internal/gateway"
	"medcart/internal/repository"
)

// PaymentService мост к платёжному шлюзу: создание и подтверждение интентов
type PaymentService struct {
	orders   repository.OrderRepository
	tx       repository.TxManager
	gateway  gateway.Gateway
	currency string
}

func NewPaymentService(orders repository.OrderRepository, tx repository.TxManager, gw gateway.Gateway) *PaymentService {
	return &PaymentService{orders: orders, tx: tx, gateway: gw, currency: "usd"}
}

// IntentHandle то, что нужно клиенту для завершения оплаты
type IntentHandle struct {
	IntentID     string `json:"payment_intent_id"`
	ClientSecret string `json:"client_secret"`
}

// CreateIntent создаёт интент для заказа по короткому коду. Повторный вызов
// замещает прежний интент: подтверждаем всегда только последний сохранённый.
func (s *PaymentService) CreateIntent(ctx context.Context, actor domain.Actor, orderCode string) (*IntentHandle, error) {
	if len(orderCode) != domain.OrderCodeLength {
		return nil, ErrInvalidInput
	}
	o, err := s.orders.GetByCode(ctx, orderCode)
	if err != nil {
		return nil, err
	}
	if o.Status != domain.OrderStatusCreated {
		return nil, ErrInvalidState
	}

	amount := o.Total.Mul(decimal.NewFromInt(100)).IntPart() // в центах
	in, err := s.gateway.CreateIntent(ctx, amount, s.currency, orderCode)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByID(ctx, o.ID)
		if err != nil {
			return err
		}
		if o.Status != domain.OrderStatusCreated {
			return ErrInvalidState
		}
		o.PaymentIntentID = in.ID
		return s.orders.Update(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	return &IntentHandle{IntentID: in.ID, ClientSecret: in.ClientSecret}, nil
}

// ConfirmIntent сверяет статус интента со шлюзом и переводит заказ в PAID.
// Повторное подтверждение уже оплаченного заказа тем же интентом — no-op
// с тем же успешным результатом. Ошибка шлюза отдаётся как есть, заказ не меняется.
func (s *PaymentService) ConfirmIntent(ctx context.Context, actor domain.Actor, intentID string) (*domain.Order, error) {
	if intentID == "" {
		return nil, ErrInvalidInput
	}
	o, err := s.orders.GetByIntentID(ctx, intentID)
	if err != nil {
		return nil, err
	}
	// идемпотентность: заказ уже оплачен этим интентом
	if o.Status == domain.OrderStatusPaid && o.PaymentIntentID == intentID {
		return o, nil
	}
	if !o.Status.CanTransitionTo(domain.OrderStatusPaid) {
		return nil, ErrInvalidState
	}

	in, err := s.gateway.GetIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if in.Status != gateway.IntentStatusSucceeded {
		return nil, &gateway.Error{StatusCode: 402, Code: "payment_incomplete", Message: "payment intent is not in succeeded state: " + in.Status}
	}

	payer := actor.Email
	if actor.Guest() || payer == "" {
		payer = domain.GuestPayer
	}

	var updated *domain.Order
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByID(ctx, o.ID)
		if err != nil {
			return err
		}
		// интент могли заместить между чтением и транзакцией
		if o.PaymentIntentID != intentID {
			return ErrInvalidState
		}
		if o.Status == domain.OrderStatusPaid {
			updated = o
			return nil
		}
		if !o.Status.CanTransitionTo(domain.OrderStatusPaid) {
			return ErrInvalidState
		}
		o.Status = domain.OrderStatusPaid
		o.PaidBy = payer
		if err := s.orders.Update(ctx, o); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
