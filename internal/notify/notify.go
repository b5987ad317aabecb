package notify

import "context"

// EmailSender узкий интерфейс доставки почты
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMSSender узкий интерфейс доставки SMS
type SMSSender interface {
	Send(ctx context.Context, phone, body string) error
}
