package gateway

import "context"

// Статусы интента на стороне шлюза
const (
	IntentStatusRequiresPayment = "requires_payment_method"
	IntentStatusSucceeded       = "succeeded"
)

// Intent запись шлюза об авторизованном, но не подтверждённом платеже
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	OrderCode    string `json:"order_code,omitempty"`
}

// Gateway узкий интерфейс платёжного шлюза
type Gateway interface {
	CreateIntent(ctx context.Context, amount int64, currency, orderCode string) (*Intent, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
}

// Error ошибка шлюза; код и сообщение отдаются клиенту как есть
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}
