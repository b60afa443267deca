package estore

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"goflare.io/estore/metrics"
	"goflare.io/estore/models"
	"goflare.io/estore/models/enum"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store *memStore
	tx    *memTx
	pub   *recordingPublisher
	svc   *service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	tx := &memTx{store: store}
	pub := &recordingPublisher{}
	svc := newService(store.repositories(), tx, pub, metrics.NewShop(prometheus.NewRegistry()), Config{}, zaptest.NewLogger(t))
	svc.now = func() time.Time { return testNow }
	return &fixture{store: store, tx: tx, pub: pub, svc: svc}
}

func (f *fixture) seedProduct(t *testing.T, name, price string, quantity int64) *models.Product {
	t.Helper()
	p, err := f.store.CreateProduct(context.Background(), nil, &models.Product{
		Name:     name,
		Slug:     name,
		Price:    decimal.RequireFromString(price),
		Quantity: quantity,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) seedPlan(t *testing.T, productID uint64, price string) *models.ProductPlan {
	t.Helper()
	plan, err := f.store.CreatePlan(context.Background(), nil, &models.ProductPlan{
		ProductID:   productID,
		Name:        "extended",
		Price:       decimal.RequireFromString(price),
		Guarantee:   2,
		Maintenance: 1,
	})
	require.NoError(t, err)
	return plan
}

func (f *fixture) stockOf(t *testing.T, productID uint64) int64 {
	t.Helper()
	p, err := f.store.GetProduct(context.Background(), nil, productID)
	require.NoError(t, err)
	return p.Quantity
}

func deliveryRequest(customerID uint64, entries ...OrderEntry) PlaceOrderRequest {
	return PlaceOrderRequest{
		CustomerID:    customerID,
		Entries:       entries,
		Type:          enum.OrderTypeDelivery,
		PaymentMethod: enum.PaymentMethodCreditCard,
		Address:       "12 Harbour Road",
	}
}

// deliveredOrder 下單後推進到 DELIVERED
func (f *fixture) deliveredOrder(t *testing.T, customerID uint64, entries ...OrderEntry) *models.Order {
	t.Helper()
	ctx := context.Background()
	o, err := f.svc.PlaceOrder(ctx, deliveryRequest(customerID, entries...))
	require.NoError(t, err)

	_, err = f.svc.AcceptOrder(ctx, o.ID)
	require.NoError(t, err)
	for _, status := range []enum.OrderStatus{enum.OrderStatusPreparing, enum.OrderStatusDelivered} {
		_, err = f.svc.UpdateOrderStatus(ctx, o.ID, status)
		require.NoError(t, err)
	}

	o, err = f.svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, enum.OrderStatusDelivered, o.Status)
	return o
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "want amount %s, got %s", want, got)
}

func planID(id uint64) *uint64 {
	return &id
}
