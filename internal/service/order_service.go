package service

import (
	"context"
	"crypto/rand"
	"errors"

	"github.com/shopspring/decimal"

	"medcart/internal/domain"
	"medcart/internal/repository"
)

// OrderService реализует жизненный цикл заказа:
// CREATED -> PAID -> FULFILLED | REFUNDED | REJECTED, CREATED|PAID -> CANCELLED
type OrderService struct {
	products repository.ProductRepository
	orders   repository.OrderRepository
	tx       repository.TxManager
}

func NewOrderService(products repository.ProductRepository, orders repository.OrderRepository, tx repository.TxManager) *OrderService {
	return &OrderService{products: products, orders: orders, tx: tx}
}

var (
	ErrNotEnoughStock = errors.New("not enough stock")
	ErrInvalidState   = errors.New("invalid state")
	ErrForbidden      = errors.New("forbidden")
	ErrUnauthorized   = errors.New("unauthorized")
)

// codeAlphabet без визуально похожих символов (0/O, 1/I/L)
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const codeAttempts = 10

// newOrderCode генерирует короткий код; уникальность проверяет вызывающий
func newOrderCode() (string, error) {
	buf := make([]byte, domain.OrderCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i := range buf {
		buf[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
	}
	return string(buf), nil
}

// CreateOrder проверяет наличие товара, атомарно списывает запас и создаёт
// заказ в статусе CREATED с зафиксированными ценами позиций
func (s *OrderService) CreateOrder(ctx context.Context, actor domain.Actor, items []domain.OrderItem) (*domain.Order, error) {
	if actor.Role != domain.RoleUser && actor.Role != domain.RoleDoctor {
		return nil, ErrForbidden
	}
	if len(items) == 0 {
		return nil, ErrInvalidInput
	}
	// validate items
	for _, it := range items {
		if it.ProductID <= 0 || it.Quantity <= 0 {
			return nil, ErrInvalidInput
		}
	}

	var created *domain.Order
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		// load and check stock
		// accumulate updates to avoid partial state
		productCopies := make(map[int64]*domain.Product)
		total := decimal.Zero
		snapshot := make([]domain.OrderItem, 0, len(items))
		for _, it := range items {
			p, err := s.products.GetByID(ctx, it.ProductID)
			if err != nil {
				return err
			}
			if p.Stock < it.Quantity {
				return ErrNotEnoughStock
			}
			// reserve
			p.Stock -= it.Quantity
			productCopies[p.ID] = p
			snapshot = append(snapshot, domain.OrderItem{
				ProductID: p.ID,
				Name:      p.Name,
				Quantity:  it.Quantity,
				UnitPrice: p.Price,
			})
			total = total.Add(p.Price.Mul(decimal.NewFromInt(it.Quantity)))
		}
		// persist product stock updates
		for _, p := range productCopies {
			if err := s.products.Update(ctx, p); err != nil {
				return err
			}
		}

		o := domain.Order{
			UserID: actor.UserID,
			Items:  snapshot,
			Total:  total,
			Status: domain.OrderStatusCreated,
		}
		// код уникален: при коллизии пробуем следующий
		for i := 0; ; i++ {
			code, err := newOrderCode()
			if err != nil {
				return err
			}
			o.Code = code
			err = s.orders.Create(ctx, &o)
			if err == nil {
				break
			}
			if !errors.Is(err, repository.ErrDuplicate) || i == codeAttempts-1 {
				return err
			}
		}
		created = &o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetOrder возвращает заказ: персонал и врачи видят любой, пользователь — свой
func (s *OrderService) GetOrder(ctx context.Context, actor domain.Actor, id int64) (*domain.Order, error) {
	if actor.Guest() {
		return nil, ErrUnauthorized
	}
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RoleUser && o.UserID != actor.UserID {
		return nil, ErrForbidden
	}
	return o, nil
}

// GetOrderByCode гостевой поиск по короткому коду платёжной ссылки
func (s *OrderService) GetOrderByCode(ctx context.Context, code string) (*domain.Order, error) {
	if len(code) != domain.OrderCodeLength {
		return nil, ErrInvalidInput
	}
	return s.orders.GetByCode(ctx, code)
}

// ListAll все заказы; только персонал
func (s *OrderService) ListAll(ctx context.Context, actor domain.Actor) ([]domain.Order, error) {
	if !actor.Role.Staff() {
		return nil, ErrForbidden
	}
	return s.orders.List(ctx, repository.OrderFilter{})
}

// ListPaid оплаченные заказы; только персонал
func (s *OrderService) ListPaid(ctx context.Context, actor domain.Actor) ([]domain.Order, error) {
	if !actor.Role.Staff() {
		return nil, ErrForbidden
	}
	st := domain.OrderStatusPaid
	return s.orders.List(ctx, repository.OrderFilter{Status: &st})
}

// ListByStatus заказы по статусу для панели персонала
func (s *OrderService) ListByStatus(ctx context.Context, actor domain.Actor, status *domain.OrderStatus) ([]domain.Order, error) {
	if !actor.Role.Staff() {
		return nil, ErrForbidden
	}
	return s.orders.List(ctx, repository.OrderFilter{Status: status})
}

// ListMine заказы вызывающего пользователя или врача
func (s *OrderService) ListMine(ctx context.Context, actor domain.Actor, status *domain.OrderStatus) ([]domain.Order, error) {
	if actor.Role != domain.RoleUser && actor.Role != domain.RoleDoctor {
		return nil, ErrForbidden
	}
	return s.orders.List(ctx, repository.OrderFilter{UserID: &actor.UserID, Status: status})
}

// Fulfill PAID -> FULFILLED, действие персонала
func (s *OrderService) Fulfill(ctx context.Context, actor domain.Actor, id int64) (*domain.Order, error) {
	return s.staffTransition(ctx, actor, id, domain.OrderStatusFulfilled, "", false)
}

// Refund PAID -> REFUNDED, действие персонала, комментарий обязателен
func (s *OrderService) Refund(ctx context.Context, actor domain.Actor, id int64, comment string) (*domain.Order, error) {
	return s.staffTransition(ctx, actor, id, domain.OrderStatusRefunded, comment, true)
}

// Reject PAID -> REJECTED, действие персонала, комментарий обязателен
func (s *OrderService) Reject(ctx context.Context, actor domain.Actor, id int64, comment string) (*domain.Order, error) {
	return s.staffTransition(ctx, actor, id, domain.OrderStatusRejected, comment, true)
}

// staffTransition общий гард: роль, затем текущий статус; без частичных записей
func (s *OrderService) staffTransition(ctx context.Context, actor domain.Actor, id int64, next domain.OrderStatus, comment string, needComment bool) (*domain.Order, error) {
	if !actor.Role.Staff() {
		return nil, ErrForbidden
	}
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	if needComment && comment == "" {
		return nil, ErrInvalidInput
	}
	var updated *domain.Order
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !o.Status.CanTransitionTo(next) {
			return ErrInvalidState
		}
		// refund/reject возвращают товар на склад
		if next == domain.OrderStatusRefunded || next == domain.OrderStatusRejected {
			if err := s.restoreStock(ctx, o.Items); err != nil {
				return err
			}
		}
		o.Status = next
		o.StaffActorID = actor.UserID
		if comment != "" {
			o.StaffComment = comment
		}
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

// CancelOrder отмена владельцем или врачом, пока заказ не исполнен
func (s *OrderService) CancelOrder(ctx context.Context, actor domain.Actor, id int64) (*domain.Order, error) {
	if actor.Role != domain.RoleUser && actor.Role != domain.RoleDoctor {
		return nil, ErrForbidden
	}
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	var updated *domain.Order
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByID(ctx, id)
		if err != nil {
			return err
		}
		// врач может отменить чужой заказ, действуя за пациента
		if actor.Role == domain.RoleUser && o.UserID != actor.UserID {
			return ErrForbidden
		}
		if !o.Status.CanTransitionTo(domain.OrderStatusCancelled) {
			return ErrInvalidState
		}
		// return stock
		if err := s.restoreStock(ctx, o.Items); err != nil {
			return err
		}
		o.Status = domain.OrderStatusCancelled
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

func (s *OrderService) restoreStock(ctx context.Context, items []domain.OrderItem) error {
	for _, it := range items {
		p, err := s.products.GetByID(ctx, it.ProductID)
		if err != nil {
			// товар мог быть удалён из каталога; запас восстанавливать некуда
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return err
		}
		p.Stock += it.Quantity
		if err := s.products.Update(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
