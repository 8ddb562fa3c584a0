package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/payment"
	"github.com/your-org/storefront-backend/internal/pkg/logger"
)

type orchestratorFixture struct {
	store     *cart.Store
	persister *memoryPersister
	stock     *fakeStock
	gateway   *fakeGateway
	orders    *fakeOrders
	orch      *Orchestrator
}

func newOrchestratorFixture(t *testing.T, timeout time.Duration) *orchestratorFixture {
	t.Helper()

	persister := newMemoryPersister()
	store := cart.NewStore("session-1", persister, logger.Discard())
	stock := newFakeStock()
	gateway := &fakeGateway{}
	orders := newFakeOrders()

	opts := Options{
		Currency:   "ARS",
		BackURLs:   payment.BackURLs{Success: "https://shop.test/ok", Failure: "https://shop.test/ko", Pending: "https://shop.test/wait"},
		AutoReturn: "approved",
		Timeout:    timeout,
	}
	orch := NewOrchestrator(store, NewReconciler(stock), gateway, orders, opts, logger.Discard())

	return &orchestratorFixture{
		store:     store,
		persister: persister,
		stock:     stock,
		gateway:   gateway,
		orders:    orders,
		orch:      orch,
	}
}

func (f *orchestratorFixture) add(t *testing.T, id, name string, price int64, qty int) {
	t.Helper()
	require.NoError(t, f.store.AddLine(context.Background(), cart.Line{
		ProductID: id,
		Name:      name,
		UnitPrice: decimal.NewFromInt(price),
		Quantity:  qty,
	}))
}

func (f *orchestratorFixture) run(t *testing.T, ctx context.Context) []Transition {
	t.Helper()
	ch, err := f.orch.Start(ctx)
	require.NoError(t, err)
	return drain(ch)
}

func TestOrchestrator_SingleProductScenario(t *testing.T) {
	f := newOrchestratorFixture(t, time.Second)
	f.add(t, "A", "A", 1000, 1)
	f.stock.set("A", "A", 1000, 5)

	ts := f.run(t, context.Background())

	assert.Equal(t, []State{
		StateValidating, StatePricing, StateCreatingPreference, StateRedirecting, StateCompleted,
	}, states(ts))

	final := ts[len(ts)-1]
	require.NoError(t, final.Err)
	require.NotNil(t, final.Result)
	assert.Equal(t, "https://mp.test/checkout?pref_id=pref-1", final.Result.RedirectURL)
	assert.Equal(t, "pref-1", final.Result.PreferenceID)

	require.Equal(t, 1, f.gateway.callCount())
	req := f.gateway.lastCall()
	want := []payment.Item{{Title: "A", Quantity: 1, CurrencyID: "ARS", UnitPrice: decimal.NewFromInt(1000)}}
	if diff := cmp.Diff(want, req.Items); diff != "" {
		t.Errorf("gateway items mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, final.Result.Reference, req.ExternalReference)
	assert.Equal(t, "approved", req.AutoReturn)

	assert.True(t, f.store.Snapshot().IsEmpty())
	assert.False(t, f.persister.has("session-1"))
	assert.Equal(t, "pref-1", f.orders.preferences[final.Result.Reference])
	assert.Equal(t, StateIdle, f.orch.State())
}

func TestOrchestrator_RecordsPendingOrderWithAuthoritativePrices(t *testing.T) {
	f := newOrchestratorFixture(t, time.Second)
	f.add(t, "A", "Notebook", 100, 2)
	f.add(t, "B", "Mouse", 50, 1)
	f.stock.set("A", "Notebook Pro", 110, 10)
	f.stock.set("B", "Mouse", 50, 10)
	require.NoError(t, f.store.SetDiscountPercent(context.Background(), decimal.NewFromInt(10), "PROMO10"))
	require.NoError(t, f.store.SetShippingCost(context.Background(), decimal.NewFromInt(20), "1406"))

	ts := f.run(t, context.Background())
	final := ts[len(ts)-1]
	require.NoError(t, final.Err)

	recorded := f.orders.orders[final.Result.Reference]
	require.NotNil(t, recorded)
	assert.Equal(t, "session-1", recorded.SessionID)
	assert.Equal(t, "ARS", recorded.Currency)
	assert.True(t, recorded.Subtotal.Equal(decimal.NewFromInt(270)), recorded.Subtotal.String())
	assert.True(t, recorded.Total.Equal(decimal.NewFromInt(263)), recorded.Total.String())
	assert.Equal(t, "PROMO10", recorded.DiscountCode)
	assert.Equal(t, "1406", recorded.PostalCode)
	require.Len(t, recorded.Items, 2)
	assert.Equal(t, "Notebook Pro", recorded.Items[0].Title)

	want := []payment.Item{
		{Title: "Notebook Pro", Quantity: 2, CurrencyID: "ARS", UnitPrice: decimal.NewFromInt(99)},
		{Title: "Mouse", Quantity: 1, CurrencyID: "ARS", UnitPrice: decimal.NewFromInt(45)},
		{Title: shippingItemTitle, Quantity: 1, CurrencyID: "ARS", UnitPrice: decimal.NewFromInt(20)},
	}
	if diff := cmp.Diff(want, f.gateway.lastCall().Items); diff != "" {
		t.Errorf("gateway items mismatch (-want +got):\n%s", diff)
	}
}

func TestOrchestrator_EmptyCart(t *testing.T) {
	f := newOrchestratorFixture(t, time.Second)

	ts := f.run(t, context.Background())

	assert.Equal(t, []State{StateValidating, StateFailed}, states(ts))
	assert.ErrorIs(t, ts[len(ts)-1].Err, ErrEmptyCart)
	assert.Zero(t, f.gateway.callCount())
}

func TestOrchestrator_StockRejectionKeepsCart(t *testing.T) {
	f := newOrchestratorFixture(t, time.Second)
	f.add(t, "A", "A", 1000, 3)
	f.stock.set("A", "A", 1000, 2)
	before := f.store.Snapshot()

	ts := f.run(t, context.Background())

	final := ts[len(ts)-1]
	assert.Equal(t, StateFailed, final.State)
	var rejected *StockRejectedError
	require.ErrorAs(t, final.Err, &rejected)
	assert.Equal(t, "A", rejected.ProductID)
	assert.Zero(t, f.gateway.callCount())
	assert.Empty(t, f.orders.orders)

	if diff := cmp.Diff(before, f.store.Snapshot()); diff != "" {
		t.Errorf("cart changed after rejection (-before +after):\n%s", diff)
	}
	assert.True(t, f.persister.has("session-1"))
}

func TestOrchestrator_GatewayFailureKeepsCart(t *testing.T) {
	f := newOrchestratorFixture(t, time.Second)
	f.add(t, "A", "A", 1000, 1)
	f.stock.set("A", "A", 1000, 5)
	f.gateway.err = &payment.APIError{StatusCode: 500, Body: "boom"}

	ts := f.run(t, context.Background())

	final := ts[len(ts)-1]
	var gatewayErr *GatewayError
	require.ErrorAs(t, final.Err, &gatewayErr)
	assert.Equal(t, CodeGatewayError, Code(final.Err))
	assert.Len(t, f.store.Snapshot().Lines, 1)
	assert.Len(t, f.orders.failed, 1)
}

func TestOrchestrator_OrderRecordFailureNeverReachesGateway(t *testing.T) {
	f := newOrchestratorFixture(t, time.Second)
	f.add(t, "A", "A", 1000, 1)
	f.stock.set("A", "A", 1000, 5)
	f.orders.recordErr = errors.New("db down")

	ts := f.run(t, context.Background())

	assert.ErrorIs(t, ts[len(ts)-1].Err, ErrOrderNotRecorded)
	assert.Zero(t, f.gateway.callCount())
	assert.Len(t, f.store.Snapshot().Lines, 1)
}

func TestOrchestrator_RejectsConcurrentStart(t *testing.T) {
	f := newOrchestratorFixture(t, 5*time.Second)
	f.add(t, "A", "A", 1000, 1)
	f.stock.set("A", "A", 1000, 5)
	f.gateway.started = make(chan struct{}, 1)
	f.gateway.block = make(chan struct{})

	first, err := f.orch.Start(context.Background())
	require.NoError(t, err)
	<-f.gateway.started

	second, err := f.orch.Start(context.Background())
	assert.ErrorIs(t, err, ErrCheckoutInProgress)
	assert.Nil(t, second)

	close(f.gateway.block)
	ts := drain(first)

	assert.Equal(t, StateCompleted, ts[len(ts)-1].State)
	assert.Equal(t, 1, f.gateway.callCount())
}

func TestOrchestrator_CanRestartAfterFailure(t *testing.T) {
	f := newOrchestratorFixture(t, time.Second)
	f.add(t, "A", "A", 1000, 1)
	f.stock.set("A", "A", 1000, 0)

	ts := f.run(t, context.Background())
	require.Equal(t, StateFailed, ts[len(ts)-1].State)

	f.stock.set("A", "A", 1000, 1)
	ts = f.run(t, context.Background())
	assert.Equal(t, StateCompleted, ts[len(ts)-1].State)
}

func TestOrchestrator_Timeout(t *testing.T) {
	f := newOrchestratorFixture(t, 50*time.Millisecond)
	f.add(t, "A", "A", 1000, 1)
	f.stock.set("A", "A", 1000, 5)
	f.gateway.block = make(chan struct{})
	defer close(f.gateway.block)

	ts := f.run(t, context.Background())

	final := ts[len(ts)-1]
	assert.ErrorIs(t, final.Err, ErrCheckoutTimeout)
	assert.Equal(t, CodeTimeout, Code(final.Err))
	assert.Len(t, f.store.Snapshot().Lines, 1)
	assert.Len(t, f.orders.failed, 1)
}

func TestOrchestrator_Cancelled(t *testing.T) {
	f := newOrchestratorFixture(t, 5*time.Second)
	f.add(t, "A", "A", 1000, 1)
	f.stock.set("A", "A", 1000, 5)
	f.gateway.started = make(chan struct{}, 1)
	f.gateway.block = make(chan struct{})
	defer close(f.gateway.block)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := f.orch.Start(ctx)
	require.NoError(t, err)

	<-f.gateway.started
	cancel()
	ts := drain(ch)

	assert.ErrorIs(t, ts[len(ts)-1].Err, ErrCheckoutCancelled)
	assert.Len(t, f.store.Snapshot().Lines, 1)
	assert.Equal(t, StateIdle, f.orch.State())
}

func TestOrchestrator_KeepsLinesAddedDuringCheckout(t *testing.T) {
	f := newOrchestratorFixture(t, 5*time.Second)
	f.add(t, "A", "A", 1000, 2)
	f.stock.set("A", "A", 1000, 5)
	f.stock.set("B", "B", 500, 5)
	require.NoError(t, f.store.SetShippingCost(context.Background(), decimal.NewFromInt(20), "1406"))
	f.gateway.started = make(chan struct{}, 1)
	f.gateway.block = make(chan struct{})

	ch, err := f.orch.Start(context.Background())
	require.NoError(t, err)
	<-f.gateway.started

	f.add(t, "B", "B", 500, 1)
	f.add(t, "A", "A", 1000, 1)
	close(f.gateway.block)
	ts := drain(ch)

	require.Equal(t, StateCompleted, ts[len(ts)-1].State)
	charged := f.gateway.lastCall().Items
	require.Len(t, charged, 2)
	assert.Equal(t, "A", charged[0].Title)
	assert.Equal(t, 2, charged[0].Quantity)

	snap := f.store.Snapshot()
	want := map[string]int{"A": 1, "B": 1}
	got := make(map[string]int)
	for _, line := range snap.Lines {
		got[line.ProductID] = line.Quantity
	}
	assert.Equal(t, want, got)
	assert.True(t, snap.ShippingCost.IsZero())
	assert.True(t, f.persister.has("session-1"))
}

func TestOrchestrator_OrderTotalMatchesChargedItems(t *testing.T) {
	f := newOrchestratorFixture(t, time.Second)
	price := decimal.RequireFromString("10.01")
	require.NoError(t, f.store.AddLine(context.Background(), cart.Line{ProductID: "A", Name: "A", UnitPrice: price, Quantity: 3}))
	require.NoError(t, f.store.SetDiscountPercent(context.Background(), decimal.NewFromInt(15), "PROMO15"))
	f.stock.setPrice("A", price, 10)

	ts := f.run(t, context.Background())
	final := ts[len(ts)-1]
	require.NoError(t, final.Err)

	charged := f.gateway.lastCall()
	assert.True(t, charged.Items[0].UnitPrice.Equal(decimal.RequireFromString("8.51")), charged.Items[0].UnitPrice.String())

	recorded := f.orders.orders[final.Result.Reference]
	require.NotNil(t, recorded)
	assert.True(t, recorded.Subtotal.Equal(decimal.RequireFromString("30.03")), recorded.Subtotal.String())
	assert.True(t, recorded.Total.Equal(decimal.RequireFromString("25.53")), recorded.Total.String())
	assert.True(t, recorded.Total.Equal(charged.Total()))
}

func TestOrchestrator_RevalidatesDiscountCode(t *testing.T) {
	tests := []struct {
		name      string
		discounts fakeDiscounts
		wantErr   bool
		wantPrice decimal.Decimal
	}{
		{name: "deactivated code", discounts: fakeDiscounts{}, wantErr: true},
		{name: "still valid", discounts: fakeDiscounts{"PROMO10": decimal.NewFromInt(10)}, wantPrice: decimal.NewFromInt(900)},
		{name: "percent changed", discounts: fakeDiscounts{"PROMO10": decimal.NewFromInt(5)}, wantPrice: decimal.NewFromInt(950)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrchestratorFixture(t, time.Second)
			f.orch.reconciler = NewReconciler(f.stock).WithDiscounts(tt.discounts)
			f.add(t, "A", "A", 1000, 1)
			f.stock.set("A", "A", 1000, 5)
			require.NoError(t, f.store.SetDiscountPercent(context.Background(), decimal.NewFromInt(10), "PROMO10"))
			before := f.store.Snapshot()

			ts := f.run(t, context.Background())
			final := ts[len(ts)-1]

			if tt.wantErr {
				var rejected *DiscountRejectedError
				require.ErrorAs(t, final.Err, &rejected)
				assert.Equal(t, "PROMO10", rejected.Code)
				assert.Equal(t, CodeDiscount, Code(final.Err))
				assert.Equal(t, []State{StateValidating, StateFailed}, states(ts))
				assert.Zero(t, f.gateway.callCount())
				if diff := cmp.Diff(before, f.store.Snapshot()); diff != "" {
					t.Errorf("cart changed after rejection (-before +after):\n%s", diff)
				}
				return
			}

			require.NoError(t, final.Err)
			item := f.gateway.lastCall().Items[0]
			assert.True(t, item.UnitPrice.Equal(tt.wantPrice), item.UnitPrice.String())
		})
	}
}

func TestUserMessage_Distinct(t *testing.T) {
	errs := []error{
		ErrEmptyCart,
		ErrInvalidLineIdentifier,
		&StockRejectedError{ProductID: "A", Reason: ReasonInsufficientStock, Requested: 2, Available: 1},
		&StockRejectedError{ProductID: "A", Reason: ReasonNotFound},
		&GatewayError{Err: errors.New("x")},
		&DiscountRejectedError{Code: "PROMO10", Err: errors.New("expired")},
		ErrCheckoutInProgress,
		ErrCheckoutCancelled,
		ErrCheckoutTimeout,
		ErrOrderNotRecorded,
	}

	seen := make(map[string]bool)
	for _, err := range errs {
		msg := UserMessage(err)
		assert.NotEmpty(t, msg)
		assert.False(t, seen[msg], "duplicate message %q", msg)
		seen[msg] = true
	}
}
