package notify

import (
	"context"
	"sync"
)

// Message доставленное фейком сообщение
type Message struct {
	To      string
	Subject string
	Body    string
}

// FakeEmail запоминает письма вместо отправки
type FakeEmail struct {
	mu   sync.Mutex
	Sent []Message
}

var _ EmailSender = (*FakeEmail)(nil)

func (f *FakeEmail) Send(ctx context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, Message{To: to, Subject: subject, Body: body})
	return nil
}

// FakeSMS запоминает SMS вместо отправки
type FakeSMS struct {
	mu   sync.Mutex
	Sent []Message
}

var _ SMSSender = (*FakeSMS)(nil)

func (f *FakeSMS) Send(ctx context.Context, phone, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, Message{To: phone, Body: body})
	return nil
}
