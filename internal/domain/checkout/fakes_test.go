package checkout

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/discount"
	"github.com/your-org/storefront-backend/internal/domain/inventory"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/domain/payment"
)

type fakeStock struct {
	mu     sync.Mutex
	levels map[string]inventory.Level
	reads  int
}

func newFakeStock() *fakeStock {
	return &fakeStock{levels: make(map[string]inventory.Level)}
}

func (f *fakeStock) set(id, name string, price int64, available int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.levels[id] = inventory.Level{
		ProductID: id,
		Exists:    true,
		Name:      name,
		Price:     decimal.NewFromInt(price),
		Available: available,
	}
}

func (f *fakeStock) setPrice(id string, price decimal.Decimal, available int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.levels[id] = inventory.Level{ProductID: id, Exists: true, Name: id, Price: price, Available: available}
}

func (f *fakeStock) GetLevel(_ context.Context, productID string) (inventory.Level, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if level, ok := f.levels[productID]; ok {
		return level, nil
	}
	return inventory.Level{ProductID: productID}, nil
}

// fakeDiscounts validates the codes it holds; anything else does not exist
type fakeDiscounts map[string]decimal.Decimal

func (f fakeDiscounts) Validate(_ context.Context, code string) (decimal.Decimal, error) {
	percent, ok := f[code]
	if !ok {
		return decimal.Zero, discount.ErrCodeNotFound
	}
	return percent, nil
}

type fakeGateway struct {
	mu      sync.Mutex
	calls   []payment.PreferenceRequest
	started chan struct{}
	block   chan struct{}
	err     error
}

func (g *fakeGateway) CreatePreference(ctx context.Context, req payment.PreferenceRequest) (*payment.Preference, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	g.mu.Unlock()

	if g.started != nil {
		g.started <- struct{}{}
	}
	if g.block != nil {
		select {
		case <-g.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if g.err != nil {
		return nil, g.err
	}
	return &payment.Preference{ID: "pref-1", RedirectURL: "https://mp.test/checkout?pref_id=pref-1"}, nil
}

func (g *fakeGateway) GetPayment(context.Context, string) (*payment.Payment, error) {
	return nil, errors.New("not used")
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *fakeGateway) lastCall() payment.PreferenceRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[len(g.calls)-1]
}

type fakeOrders struct {
	mu          sync.Mutex
	orders      map[string]*order.Order
	failed      map[string]string
	preferences map[string]string
	recordErr   error
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{
		orders:      make(map[string]*order.Order),
		failed:      make(map[string]string),
		preferences: make(map[string]string),
	}
}

func (f *fakeOrders) RecordPending(_ context.Context, o *order.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return f.recordErr
	}
	f.orders[o.Reference] = o
	return nil
}

func (f *fakeOrders) AttachPreference(_ context.Context, reference, preferenceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.preferences[reference] = preferenceID
	return nil
}

func (f *fakeOrders) MarkFailed(_ context.Context, reference, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[reference] = reason
	return nil
}

// memoryPersister records the persisted cart per session
type memoryPersister struct {
	mu    sync.Mutex
	carts map[string]cart.Snapshot
}

func newMemoryPersister() *memoryPersister {
	return &memoryPersister{carts: make(map[string]cart.Snapshot)}
}

func (m *memoryPersister) Save(_ context.Context, sessionID string, snap cart.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[sessionID] = snap
	return nil
}

func (m *memoryPersister) Load(_ context.Context, sessionID string) (cart.Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.carts[sessionID]
	return snap, ok, nil
}

func (m *memoryPersister) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, sessionID)
	return nil
}

func (m *memoryPersister) has(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.carts[sessionID]
	return ok
}

func drain(ch <-chan Transition) []Transition {
	var out []Transition
	for t := range ch {
		out = append(out, t)
	}
	return out
}

func states(ts []Transition) []State {
	out := make([]State, len(ts))
	for i, t := range ts {
		out[i] = t.State
	}
	return out
}
