package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"medcart/internal/domain"
	"medcart/internal/notify"
)

// usPhoneRe телефоны принимаются только в US E.164
var usPhoneRe = regexp.MustCompile(`^\+1[2-9][0-9]{9}$`)

// NotifyService отправка платёжных ссылок; без очередей и повторов
type NotifyService struct {
	email   notify.EmailSender
	sms     notify.SMSSender
	baseURL string
}

func NewNotifyService(email notify.EmailSender, sms notify.SMSSender, baseURL string) *NotifyService {
	return &NotifyService{email: email, sms: sms, baseURL: strings.TrimRight(baseURL, "/")}
}

// PaymentLink формирует гостевую ссылку оплаты по короткому коду
func (s *NotifyService) PaymentLink(code string) string {
	return fmt.Sprintf("%s/payOrder?code=%s", s.baseURL, code)
}

// SendPaymentLinkEmail отправляет ссылку оплаты на почту
func (s *NotifyService) SendPaymentLinkEmail(ctx context.Context, address, code string) error {
	if address == "" || !strings.Contains(address, "@") {
		return fmt.Errorf("%w: invalid email address", ErrInvalidInput)
	}
	if len(code) != domain.OrderCodeLength {
		return fmt.Errorf("%w: order code must be %d characters", ErrInvalidInput, domain.OrderCodeLength)
	}
	body := fmt.Sprintf("Your pharmacy order is ready for payment.\nPay here: %s", s.PaymentLink(code))
	return s.email.Send(ctx, address, "Complete your order payment", body)
}

// SendPaymentLinkSMS отправляет ссылку оплаты по SMS; номер вне US-формата
// отклоняется до обращения к провайдеру
func (s *NotifyService) SendPaymentLinkSMS(ctx context.Context, phone, code string) error {
	if !usPhoneRe.MatchString(phone) {
		return fmt.Errorf("%w: phone must be a US number in E.164 format (+1XXXXXXXXXX)", ErrInvalidInput)
	}
	if len(code) != domain.OrderCodeLength {
		return fmt.Errorf("%w: order code must be %d characters", ErrInvalidInput, domain.OrderCodeLength)
	}
	body := fmt.Sprintf("Pay for your pharmacy order: %s", s.PaymentLink(code))
	return s.sms.Send(ctx, phone, body)
}
