package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role роль пользователя, определяет доступные действия
type Role string

const (
	RoleUser          Role = "USER"
	RoleDoctor        Role = "DOCTOR"
	RolePharmacyStaff Role = "PHARMACY_STAFF"
	RoleAdmin         Role = "ADMIN"
)

// Staff проверяет, что роль относится к персоналу аптеки
func (r Role) Staff() bool {
	return r == RolePharmacyStaff || r == RoleAdmin
}

// Actor явный контекст авторизации запроса; передаётся в каждый вызов сервиса
type Actor struct {
	UserID int64
	Role   Role
	Email  string
	Phone  string
}

// Guest возвращает true для неаутентифицированного вызова
func (a Actor) Guest() bool { return a.UserID == 0 }

// User учётная запись
type User struct {
	ID                int64      `json:"id" db:"id"`
	Email             string     `json:"email" db:"email"`
	Phone             string     `json:"phone" db:"phone"`
	Name              string     `json:"name" db:"name"`
	Role              Role       `json:"role" db:"role"`
	PasswordHash      string     `json:"-" db:"password_hash"`
	Verified          bool       `json:"verified" db:"verified"`
	VerifyToken       string     `json:"-" db:"verify_token"`
	ResetToken        string     `json:"-" db:"reset_token"`
	ResetTokenExpires *time.Time `json:"-" db:"reset_token_expires"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
}

// Session выданный при логине bearer-токен
type Session struct {
	Token     string    `json:"token" db:"token"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Role      Role      `json:"role" db:"role"`
	Email     string    `json:"email" db:"email"`
	Phone     string    `json:"phone" db:"phone"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}

// Address адрес доставки, принадлежит ровно одному пользователю
type Address struct {
	ID     int64  `json:"id" db:"id"`
	UserID int64  `json:"user_id" db:"user_id"`
	Line1  string `json:"line1" db:"line1"`
	Line2  string `json:"line2" db:"line2"`
	City   string `json:"city" db:"city"`
	State  string `json:"state" db:"state"`
	Zip    string `json:"zip" db:"zip"`
}

// Category категория каталога
type Category struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Product представляет товар в аптеке
type Product struct {
	ID         int64           `json:"id" db:"id"`
	Name       string          `json:"name" db:"name"`
	SKU        string          `json:"sku" db:"sku"`
	Price      decimal.Decimal `json:"price" db:"price"`
	Stock      int64           `json:"stock" db:"stock"`
	CategoryID int64           `json:"category_id" db:"category_id"`
}

// OrderStatus тип статуса заказа
type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "CREATED"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusFulfilled OrderStatus = "FULFILLED"
	OrderStatusRefunded  OrderStatus = "REFUNDED"
	OrderStatusRejected  OrderStatus = "REJECTED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// orderTransitions фиксированный частичный порядок переходов статуса
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusCreated: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:    {OrderStatusFulfilled, OrderStatusRefunded, OrderStatusRejected, OrderStatusCancelled},
}

// CanTransitionTo проверяет допустимость перехода по зафиксированным рёбрам
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, t := range orderTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal возвращает true, если из статуса нет исходящих переходов
func (s OrderStatus) Terminal() bool {
	return len(orderTransitions[s]) == 0
}

// OrderItem позиция в заказе; цена фиксируется на момент покупки
type OrderItem struct {
	ProductID int64           `json:"product_id" db:"product_id"`
	Name      string          `json:"name" db:"name"`
	Quantity  int64           `json:"quantity" db:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price" db:"unit_price"`
}

// Order сущность заказа
type Order struct {
	ID              int64           `json:"id" db:"id"`
	Code            string          `json:"code" db:"code"`
	UserID          int64           `json:"user_id" db:"user_id"`
	Items           []OrderItem     `json:"items"`
	Total           decimal.Decimal `json:"total" db:"total"`
	Status          OrderStatus     `json:"status" db:"status"`
	PaymentIntentID string          `json:"payment_intent_id,omitempty" db:"payment_intent_id"`
	PaidBy          string          `json:"paid_by,omitempty" db:"paid_by"`
	StaffComment    string          `json:"staff_comment,omitempty" db:"staff_comment"`
	StaffActorID    int64           `json:"staff_actor_id,omitempty" db:"staff_actor_id"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// OrderCodeLength длина короткого кода заказа для гостевой оплаты по ссылке
const OrderCodeLength = 4

// GuestPayer сентинел плательщика для неаутентифицированного подтверждения
const GuestPayer = "guest"
