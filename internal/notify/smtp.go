package notify

import (
	"context"
	"fmt"
	"net/smtp"
)

// SMTPSender доставка почты через обычный SMTP-релей
type SMTPSender struct {
	addr string // host:port
	from string
	auth smtp.Auth
}

var _ EmailSender = (*SMTPSender)(nil)

func NewSMTPSender(addr, from, username, password string) *SMTPSender {
	s := &SMTPSender{addr: addr, from: from}
	if username != "" {
		host := addr
		for i := range addr {
			if addr[i] == ':' {
				host = addr[:i]
				break
			}
		}
		s.auth = smtp.PlainAuth("", username, password, host)
	}
	return s
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		s.from, to, subject, body)
	if err := smtp.SendMail(s.addr, s.auth, s.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}
