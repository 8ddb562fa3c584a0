package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/pkg/logger"
)

type serviceFixture struct {
	mr      *miniredis.Miniredis
	client  *redis.Client
	carts   *cart.Service
	stock   *fakeStock
	gateway *fakeGateway
	orders  *fakeOrders
	svc     *Service
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	carts, err := cart.NewService(newMemoryPersister(), nil, nil, nil, 16, logger.Discard())
	require.NoError(t, err)

	stock := newFakeStock()
	gateway := &fakeGateway{}
	orders := newFakeOrders()
	opts := Options{Currency: "ARS", AutoReturn: "approved", Timeout: 2 * time.Second}

	return &serviceFixture{
		mr:      mr,
		client:  client,
		carts:   carts,
		stock:   stock,
		gateway: gateway,
		orders:  orders,
		svc:     NewService(carts, stock, gateway, orders, client, opts, time.Minute, logger.Discard()),
	}
}

func (f *serviceFixture) fill(t *testing.T, sessionID string) {
	t.Helper()
	store := f.carts.Session(context.Background(), sessionID)
	require.NoError(t, store.AddLine(context.Background(), cart.Line{
		ProductID: "A", Name: "A", UnitPrice: decimal.NewFromInt(1000), Quantity: 1,
	}))
	f.stock.set("A", "A", 1000, 5)
}

func TestService_Run(t *testing.T) {
	f := newServiceFixture(t)
	f.fill(t, "s1")

	result, err := f.svc.Run(context.Background(), "s1")
	require.NoError(t, err)

	assert.Equal(t, "pref-1", result.PreferenceID)
	assert.NotEmpty(t, result.Reference)
	assert.True(t, f.carts.Snapshot(context.Background(), "s1").IsEmpty())
	assert.False(t, f.svc.InProgress("s1"))
	assert.False(t, f.mr.Exists(lockKeyPrefix+"s1"))
}

func TestService_RunReturnsFailure(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.Run(context.Background(), "empty")

	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.False(t, f.mr.Exists(lockKeyPrefix+"empty"))
}

func TestService_OneCheckoutPerSession(t *testing.T) {
	f := newServiceFixture(t)
	f.fill(t, "s1")
	f.gateway.started = make(chan struct{}, 1)
	f.gateway.block = make(chan struct{})

	first, err := f.svc.Start(context.Background(), "s1")
	require.NoError(t, err)
	<-f.gateway.started

	assert.True(t, f.svc.InProgress("s1"))
	assert.True(t, f.mr.Exists(lockKeyPrefix+"s1"))

	_, err = f.svc.Start(context.Background(), "s1")
	assert.ErrorIs(t, err, ErrCheckoutInProgress)

	close(f.gateway.block)
	drain(first)

	assert.Equal(t, 1, f.gateway.callCount())
	assert.False(t, f.mr.Exists(lockKeyPrefix+"s1"))
}

func TestService_LockHeldByAnotherInstance(t *testing.T) {
	f := newServiceFixture(t)
	f.fill(t, "s1")
	require.NoError(t, f.mr.Set(lockKeyPrefix+"s1", "other-instance"))

	_, err := f.svc.Run(context.Background(), "s1")

	assert.ErrorIs(t, err, ErrCheckoutInProgress)
	assert.Zero(t, f.gateway.callCount())
	assert.False(t, f.svc.InProgress("s1"))

	val, err := f.mr.Get(lockKeyPrefix + "s1")
	require.NoError(t, err)
	assert.Equal(t, "other-instance", val)
}

func TestService_WithoutRedis(t *testing.T) {
	carts, err := cart.NewService(nil, nil, nil, nil, 4, logger.Discard())
	require.NoError(t, err)
	stock := newFakeStock()
	stock.set("A", "A", 1000, 5)

	svc := NewService(carts, stock, &fakeGateway{}, newFakeOrders(), nil, Options{Currency: "ARS"}, 0, logger.Discard())
	require.NoError(t, carts.Session(context.Background(), "s").AddLine(context.Background(), cart.Line{
		ProductID: "A", UnitPrice: decimal.NewFromInt(1000), Quantity: 1,
	}))

	result, err := svc.Run(context.Background(), "s")
	require.NoError(t, err)
	assert.NotEmpty(t, result.RedirectURL)
}

func TestService_CartEvictedDuringCheckoutIsSettled(t *testing.T) {
	ctx := context.Background()
	carts, err := cart.NewService(nil, nil, nil, nil, 1, logger.Discard())
	require.NoError(t, err)
	stock := newFakeStock()
	stock.set("A", "A", 1000, 5)
	stock.set("B", "B", 500, 5)
	gateway := &fakeGateway{started: make(chan struct{}, 1), block: make(chan struct{})}
	svc := NewService(carts, stock, gateway, newFakeOrders(), nil, Options{Currency: "ARS", Timeout: 5 * time.Second}, 0, logger.Discard())

	require.NoError(t, carts.Session(ctx, "s1").AddLine(ctx, cart.Line{ProductID: "A", Name: "A", UnitPrice: decimal.NewFromInt(1000), Quantity: 1}))

	transitions, err := svc.Start(ctx, "s1")
	require.NoError(t, err)
	<-gateway.started

	// another session pushes s1 out of the cache while the gateway call runs
	carts.Session(ctx, "s2")
	require.NoError(t, carts.Session(ctx, "s1").AddLine(ctx, cart.Line{ProductID: "B", Name: "B", UnitPrice: decimal.NewFromInt(500), Quantity: 1}))

	close(gateway.block)
	ts := drain(transitions)
	require.Equal(t, StateCompleted, ts[len(ts)-1].State)

	snap := carts.Snapshot(ctx, "s1")
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, "B", snap.Lines[0].ProductID)
}
