package gateway

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
)

// Fake шлюз в памяти; используется в тестах и при пустом секретном ключе
type Fake struct {
	mu      sync.Mutex
	intents map[string]*Intent
}

var _ Gateway = (*Fake)(nil)

func NewFake() *Fake {
	return &Fake{intents: make(map[string]*Intent)}
}

func (f *Fake) CreateIntent(ctx context.Context, amount int64, currency, orderCode string) (*Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := "pi_" + uuid.NewString()
	in := &Intent{
		ID:           id,
		ClientSecret: id + "_secret_" + uuid.NewString(),
		Status:       IntentStatusRequiresPayment,
		Amount:       amount,
		Currency:     currency,
		OrderCode:    orderCode,
	}
	f.intents[id] = in
	return copyIntent(in), nil
}

func (f *Fake) GetIntent(ctx context.Context, id string) (*Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	in, ok := f.intents[id]
	if !ok {
		return nil, &Error{StatusCode: http.StatusNotFound, Code: "resource_missing", Message: "no such payment_intent: " + id}
	}
	return copyIntent(in), nil
}

// Succeed помечает интент оплаченным, как это сделал бы шлюз после списания
func (f *Fake) Succeed(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if in, ok := f.intents[id]; ok {
		in.Status = IntentStatusSucceeded
	}
}

func copyIntent(in *Intent) *Intent {
	cp := *in
	return &cp
}
