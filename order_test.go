package estore

import (
	"context"
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goflare.io/estore/broker"
	"goflare.io/estore/models"
	"goflare.io/estore/models/enum"
)

var serialPattern = regexp.MustCompile(`^[1-9][0-9]{15}$`)

func TestPlaceOrderComputesAmountsAndReducesStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	laptop := f.seedProduct(t, "laptop", "100", 10)
	plan := f.seedPlan(t, laptop.ID, "20")
	mouse := f.seedProduct(t, "mouse", "50", 3)

	o, err := f.svc.PlaceOrder(ctx, deliveryRequest(7,
		OrderEntry{ProductID: laptop.ID, ProductPlanID: planID(plan.ID), Quantity: 2},
		OrderEntry{ProductID: mouse.ID, Quantity: 1},
	))
	require.NoError(t, err)

	assert.Equal(t, enum.OrderStatusPending, o.Status)
	assert.Equal(t, uint64(7), o.CustomerID)
	require.Len(t, o.Items, 2)
	assertAmount(t, "240", o.Items[0].Amount)
	assertAmount(t, "50", o.Items[1].Amount)
	for _, item := range o.Items {
		assert.Regexp(t, serialPattern, item.SerialNo)
		assert.False(t, item.IsReturned)
	}

	require.NotNil(t, o.Payment)
	assertAmount(t, "290", o.Payment.Amount)
	assert.Equal(t, enum.PaymentStatusUnpaid, o.Payment.Status)
	assert.Equal(t, "12 Harbour Road", o.Payment.Address)
	assert.EqualValues(t, "usd", o.Payment.Currency)

	assert.Equal(t, int64(8), f.stockOf(t, laptop.ID))
	assert.Equal(t, int64(2), f.stockOf(t, mouse.ID))
	require.Len(t, f.store.movements, 2)
	for _, mv := range f.store.movements {
		assert.Equal(t, enum.StockMovementTypeOut, mv.Type)
		assert.Equal(t, enum.StockMovementReferenceTypeOrder, mv.ReferenceType)
		assert.Equal(t, o.ID, mv.ReferenceID)
	}

	assert.Equal(t, []broker.EventType{broker.EventOrderPlaced}, f.pub.types())
}

func TestPlaceOrderInsufficientStockRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.seedProduct(t, "a", "10", 5)
	b := f.seedProduct(t, "b", "10", 1)

	_, err := f.svc.PlaceOrder(ctx, deliveryRequest(1,
		OrderEntry{ProductID: a.ID, Quantity: 2},
		OrderEntry{ProductID: b.ID, Quantity: 3},
	))
	require.ErrorIs(t, err, models.ErrInsufficientStock)

	assert.Equal(t, int64(5), f.stockOf(t, a.ID))
	assert.Equal(t, int64(1), f.stockOf(t, b.ID))
	assert.Empty(t, f.store.orders)
	assert.Empty(t, f.store.orderItems)
	assert.Empty(t, f.store.payments)
	assert.Empty(t, f.store.movements)
	assert.Empty(t, f.pub.types())
	assert.Equal(t, 1, f.tx.aborts)
}

func TestPlaceOrderValidation(t *testing.T) {
	pickupAt := testNow.Add(2 * time.Hour)
	entry := OrderEntry{ProductID: 1, Quantity: 1}

	tests := []struct {
		name    string
		req     PlaceOrderRequest
		wantErr error
	}{
		{
			name:    "delivery without address",
			req:     PlaceOrderRequest{Entries: []OrderEntry{entry}, Type: enum.OrderTypeDelivery, PaymentMethod: enum.PaymentMethodCash, Address: "  "},
			wantErr: models.ErrAddressRequired,
		},
		{
			name:    "pickup without time",
			req:     PlaceOrderRequest{Entries: []OrderEntry{entry}, Type: enum.OrderTypePickup, PaymentMethod: enum.PaymentMethodCash},
			wantErr: models.ErrPickupTimeRequired,
		},
		{
			name:    "no entries",
			req:     PlaceOrderRequest{Type: enum.OrderTypePickup, PaymentMethod: enum.PaymentMethodCash, PickupAt: &pickupAt},
			wantErr: models.ErrEmptyOrder,
		},
		{
			name:    "zero quantity",
			req:     PlaceOrderRequest{Entries: []OrderEntry{{ProductID: 1}}, Type: enum.OrderTypePickup, PaymentMethod: enum.PaymentMethodCash, PickupAt: &pickupAt},
			wantErr: models.ErrInvalidQuantity,
		},
		{
			name:    "quantity beyond int64",
			req:     PlaceOrderRequest{Entries: []OrderEntry{{ProductID: 1, Quantity: math.MaxUint64}}, Type: enum.OrderTypePickup, PaymentMethod: enum.PaymentMethodCash, PickupAt: &pickupAt},
			wantErr: models.ErrInvalidQuantity,
		},
		{
			name:    "unknown order type",
			req:     PlaceOrderRequest{Entries: []OrderEntry{entry}, Type: "DRONE", PaymentMethod: enum.PaymentMethodCash},
			wantErr: models.ErrInvalidArgument,
		},
		{
			name:    "unknown payment method",
			req:     PlaceOrderRequest{Entries: []OrderEntry{entry}, Type: enum.OrderTypeDelivery, PaymentMethod: "BARTER", Address: "x"},
			wantErr: models.ErrInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.PlaceOrder(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, f.tx.commits+f.tx.aborts)
		})
	}
}

func TestPlaceOrderRejectsPlanOfAnotherProduct(t *testing.T) {
	f := newFixture(t)
	a := f.seedProduct(t, "a", "10", 5)
	b := f.seedProduct(t, "b", "10", 5)
	plan := f.seedPlan(t, b.ID, "3")

	_, err := f.svc.PlaceOrder(context.Background(), deliveryRequest(1,
		OrderEntry{ProductID: a.ID, ProductPlanID: planID(plan.ID), Quantity: 1},
	))
	require.ErrorIs(t, err, models.ErrPlanNotFound)
	assert.Equal(t, int64(5), f.stockOf(t, a.ID))
}

func TestPickupOrderLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProduct(t, "p", "10", 5)
	pickupAt := testNow.Add(24 * time.Hour)

	o, err := f.svc.PlaceOrder(ctx, PlaceOrderRequest{
		CustomerID:    1,
		Entries:       []OrderEntry{{ProductID: p.ID, Quantity: 1}},
		Type:          enum.OrderTypePickup,
		PaymentMethod: enum.PaymentMethodCash,
		PickupAt:      &pickupAt,
	})
	require.NoError(t, err)
	require.NotNil(t, o.PickupAt)

	_, err = f.svc.UpdateOrderStatus(ctx, o.ID, enum.OrderStatusPreparing)
	require.ErrorIs(t, err, models.ErrInvalidStatusTransition)

	_, err = f.svc.AcceptOrder(ctx, o.ID)
	require.NoError(t, err)
	_, err = f.svc.UpdateOrderStatus(ctx, o.ID, enum.OrderStatusPreparing)
	require.NoError(t, err)

	_, err = f.svc.UpdateOrderStatus(ctx, o.ID, enum.OrderStatusDelivered)
	require.ErrorIs(t, err, models.ErrInvalidStatusTransition)

	_, err = f.svc.UpdateOrderStatus(ctx, o.ID, enum.OrderStatusReady)
	require.NoError(t, err)
	updated, err := f.svc.UpdateOrderStatus(ctx, o.ID, enum.OrderStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusCompleted, updated.Status)
	assert.Equal(t, testNow, updated.UpdatedAt)

	_, err = f.svc.AcceptOrder(ctx, o.ID)
	require.ErrorIs(t, err, models.ErrInvalidStatusTransition)
}

func TestDeliveryOrderCannotBeReady(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProduct(t, "p", "10", 5)

	o, err := f.svc.PlaceOrder(ctx, deliveryRequest(1, OrderEntry{ProductID: p.ID, Quantity: 1}))
	require.NoError(t, err)
	_, err = f.svc.AcceptOrder(ctx, o.ID)
	require.NoError(t, err)
	_, err = f.svc.UpdateOrderStatus(ctx, o.ID, enum.OrderStatusPreparing)
	require.NoError(t, err)

	_, err = f.svc.UpdateOrderStatus(ctx, o.ID, enum.OrderStatusReady)
	require.ErrorIs(t, err, models.ErrInvalidStatusTransition)
}

func TestUpdateOrderStatusRejectsNonShippingStatuses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpdateOrderStatus(ctx, 1, enum.OrderStatusReturned)
	require.ErrorIs(t, err, models.ErrInvalidStatusTransition)

	_, err = f.svc.UpdateOrderStatus(ctx, 1, "BOGUS")
	require.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = f.svc.UpdateOrderStatus(ctx, 99, enum.OrderStatusPreparing)
	require.ErrorIs(t, err, models.ErrOrderNotFound)
}

func TestRejectOrderRestocks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProduct(t, "p", "10", 5)

	o, err := f.svc.PlaceOrder(ctx, deliveryRequest(1, OrderEntry{ProductID: p.ID, Quantity: 3}))
	require.NoError(t, err)
	require.Equal(t, int64(2), f.stockOf(t, p.ID))

	rejected, err := f.svc.RejectOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusRejected, rejected.Status)
	assert.Equal(t, int64(5), f.stockOf(t, p.ID))

	last := f.store.movements[len(f.store.movements)-1]
	assert.Equal(t, enum.StockMovementTypeIn, last.Type)
	assert.Equal(t, int64(3), last.Quantity)
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProduct(t, "p", "10", 5)

	o, err := f.svc.PlaceOrder(ctx, deliveryRequest(1, OrderEntry{ProductID: p.ID, Quantity: 2}))
	require.NoError(t, err)

	_, err = f.svc.CancelOrder(ctx, o.ID, 2)
	require.ErrorIs(t, err, models.ErrOrderNotFound)

	cancelled, err := f.svc.CancelOrder(ctx, o.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, int64(5), f.stockOf(t, p.ID))
	assert.Equal(t, []broker.EventType{broker.EventOrderPlaced, broker.EventOrderCancelled}, f.pub.types())

	_, err = f.svc.CancelOrder(ctx, o.ID, 1)
	require.ErrorIs(t, err, models.ErrInvalidStatusTransition)
	assert.Equal(t, int64(5), f.stockOf(t, p.ID))
}

func TestCancelAcceptedOrderFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProduct(t, "p", "10", 5)

	o, err := f.svc.PlaceOrder(ctx, deliveryRequest(1, OrderEntry{ProductID: p.ID, Quantity: 2}))
	require.NoError(t, err)
	_, err = f.svc.AcceptOrder(ctx, o.ID)
	require.NoError(t, err)

	_, err = f.svc.CancelOrder(ctx, o.ID, 1)
	require.ErrorIs(t, err, models.ErrInvalidStatusTransition)
	assert.Equal(t, int64(3), f.stockOf(t, p.ID))
}

func TestListOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProduct(t, "p", "10", 10)

	first, err := f.svc.PlaceOrder(ctx, deliveryRequest(1, OrderEntry{ProductID: p.ID, Quantity: 1}))
	require.NoError(t, err)
	second, err := f.svc.PlaceOrder(ctx, deliveryRequest(2, OrderEntry{ProductID: p.ID, Quantity: 1}))
	require.NoError(t, err)
	_, err = f.svc.AcceptOrder(ctx, second.ID)
	require.NoError(t, err)

	all, err := f.svc.ListOrders(ctx, nil, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)
	for _, o := range all {
		assert.NotNil(t, o.Payment)
	}

	pending := enum.OrderStatusPending
	filtered, err := f.svc.ListOrders(ctx, &pending, 0, 0)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, first.ID, filtered[0].ID)

	mine, err := f.svc.ListCustomerOrders(ctx, 2, 10, 0)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, second.ID, mine[0].ID)

	bogus := enum.OrderStatus("BOGUS")
	_, err = f.svc.ListOrders(ctx, &bogus, 0, 0)
	require.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestGetOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProduct(t, "p", "10", 10)

	placed, err := f.svc.PlaceOrder(ctx, deliveryRequest(1, OrderEntry{ProductID: p.ID, Quantity: 2}))
	require.NoError(t, err)

	o, err := f.svc.GetOrder(ctx, placed.ID)
	require.NoError(t, err)
	require.NotNil(t, o.Payment)
	assertAmount(t, "20", o.Payment.Amount)
	require.Len(t, o.Items, 1)

	_, err = f.svc.GetOrder(ctx, 404)
	require.ErrorIs(t, err, models.ErrOrderNotFound)
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, uint64(defaultPageSize), normalizeLimit(0))
	assert.Equal(t, uint64(5), normalizeLimit(5))
	assert.Equal(t, uint64(maxPageSize), normalizeLimit(1000))
}
