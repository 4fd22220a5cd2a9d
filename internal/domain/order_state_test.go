package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner    = Actor{UserID: "user-1"}
	stranger = Actor{UserID: "user-2"}
	admin    = Actor{UserID: "admin-1", IsAdmin: true}
	created  = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
)

func newTestOrder(t *testing.T, method PaymentMethod) *Order {
	t.Helper()
	txn := ""
	if method == OnlinePayment {
		txn = "pay_123"
	}
	o, err := NewOrder(uuid.New(), owner.UserID,
		UserInfo{Name: "Asha", Address: "12 MG Road", Phone: "9999999999"},
		method, txn,
		[]OrderItem{{ProductID: "p1", Name: "Tee", Quantity: 2, Price: 500, Discount: 50}},
		created,
	)
	require.NoError(t, err)
	return o
}

func shippedOrder(t *testing.T) *Order {
	t.Helper()
	o := newTestOrder(t, CashOnDelivery)
	require.NoError(t, o.Approve(admin, created.Add(time.Hour)))
	require.NoError(t, o.Ship(admin, "TRK1", nil, created.Add(2*time.Hour)))
	return o
}

func TestNewOrder(t *testing.T) {
	cod := newTestOrder(t, CashOnDelivery)
	assert.Equal(t, OrderPending, cod.Status)
	assert.Equal(t, PaymentPending, cod.PaymentStatus)
	assert.Equal(t, ReturnNotRequested, cod.ReturnStatus)
	assert.Equal(t, int64(900), cod.TotalAmount)
	assert.Empty(t, cod.TransactionID)

	online := newTestOrder(t, OnlinePayment)
	assert.Equal(t, PaymentPaid, online.PaymentStatus)
	assert.Equal(t, "pay_123", online.TransactionID)

	_, err := NewOrder(uuid.New(), "u", UserInfo{Name: "x"}, CashOnDelivery, "", []OrderItem{{ProductID: "p", Quantity: 1}}, created)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "INCOMPLETE_INFO", CodeOf(err))

	_, err = NewOrder(uuid.New(), "u", UserInfo{Name: "x", Address: "y", Phone: "z"}, OnlinePayment, "", []OrderItem{{ProductID: "p", Quantity: 1}}, created)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewOrder(uuid.New(), "u", UserInfo{Name: "x", Address: "y", Phone: "z"}, CashOnDelivery, "", nil, created)
	assert.Equal(t, "EMPTY_CART", CodeOf(err))

	// 8 × 2^61 wraps to 0 in int64; a paid order must never be stored with that total
	_, err = NewOrder(uuid.New(), "u", UserInfo{Name: "x", Address: "y", Phone: "z"}, OnlinePayment, "pay_1",
		[]OrderItem{{ProductID: "p1", Quantity: 1 << 61, Price: 8}}, created)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "AMOUNT_OUT_OF_RANGE", CodeOf(err))
}

func TestShipRequiresApproval(t *testing.T) {
	o := newTestOrder(t, CashOnDelivery)
	err := o.Ship(admin, "TRK", nil, created)
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, OrderPending, o.Status)

	require.NoError(t, o.Approve(admin, created))
	eta := created.Add(72 * time.Hour)
	require.NoError(t, o.Ship(admin, " TRK ", &eta, created.Add(time.Hour)))
	assert.Equal(t, OrderShipped, o.Status)
	assert.Equal(t, "TRK", o.TrackingID)
	require.NotNil(t, o.EstimatedDelivery)
	assert.True(t, eta.Equal(*o.EstimatedDelivery))
	require.NotNil(t, o.ShippedAt)
}

func TestApprove(t *testing.T) {
	o := newTestOrder(t, CashOnDelivery)
	assert.ErrorIs(t, o.Approve(owner, created), ErrForbidden)
	require.NoError(t, o.Approve(admin, created))

	err := o.Approve(admin, created)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "ORDER_NOT_PENDING", CodeOf(err))

	unpaid := newTestOrder(t, OnlinePayment)
	unpaid.PaymentStatus = PaymentFailed
	assert.Equal(t, "PAYMENT_NOT_CAPTURED", CodeOf(unpaid.Approve(admin, created)))
}

func TestCancel(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name    string
		prepare func(o *Order)
		actor   Actor
		at      time.Time
		wantErr error
	}{
		{name: "owner within window", actor: owner, at: created.Add(23 * time.Hour)},
		{name: "admin at window edge", actor: admin, at: created.Add(24 * time.Hour)},
		{name: "approved order", prepare: func(o *Order) { o.Status = OrderApproved }, actor: owner, at: created.Add(time.Hour)},
		{name: "window expired", actor: owner, at: created.Add(24*time.Hour + time.Second), wantErr: ErrConflict},
		{name: "shipped", prepare: func(o *Order) { o.Status = OrderShipped }, actor: admin, at: created, wantErr: ErrConflict},
		{name: "already cancelled", prepare: func(o *Order) { o.Status = OrderCancelled }, actor: owner, at: created, wantErr: ErrConflict},
		{name: "stranger", actor: stranger, at: created, wantErr: ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrder(t, CashOnDelivery)
			if tt.prepare != nil {
				tt.prepare(o)
			}
			before := o.Status
			err := o.Cancel(tt.actor, p, tt.at)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, before, o.Status)
				assert.Nil(t, o.CancelledAt)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, OrderCancelled, o.Status)
			assert.Equal(t, tt.actor.UserID, o.CancelledBy)
			require.NotNil(t, o.CancelledAt)
		})
	}
}

func TestRequestReturn(t *testing.T) {
	p := DefaultPolicy()

	o := shippedOrder(t)
	assert.ErrorIs(t, o.RequestReturn(admin, "too small", p, created), ErrForbidden)
	assert.ErrorIs(t, o.RequestReturn(owner, "  ", p, created), ErrValidation)

	require.NoError(t, o.RequestReturn(owner, "too small", p, created.Add(48*time.Hour)))
	assert.Equal(t, ReturnRequested, o.ReturnStatus)
	assert.Equal(t, "too small", o.ReturnReason)
	assert.Equal(t, OrderShipped, o.Status)

	err := o.RequestReturn(owner, "again", p, created.Add(49*time.Hour))
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "RETURN_ALREADY_REQUESTED", CodeOf(err))

	pending := newTestOrder(t, CashOnDelivery)
	assert.Equal(t, "ORDER_NOT_SHIPPED", CodeOf(pending.RequestReturn(owner, "x", p, created)))
}

func TestReturnWindowAnchorsAtShipment(t *testing.T) {
	p := DefaultPolicy()
	o := newTestOrder(t, CashOnDelivery)
	require.NoError(t, o.Approve(admin, created))
	shipped := created.Add(5 * 24 * time.Hour)
	require.NoError(t, o.Ship(admin, "", nil, shipped))

	// ten days after creation but only five after shipment
	require.NoError(t, o.Clone().RequestReturn(owner, "late", p, shipped.Add(5*24*time.Hour)))

	err := o.RequestReturn(owner, "too late", p, shipped.Add(7*24*time.Hour+time.Minute))
	assert.Equal(t, "RETURN_WINDOW_EXPIRED", CodeOf(err))

	legacy := shippedOrder(t)
	legacy.ShippedAt = nil
	assert.Equal(t, "RETURN_WINDOW_EXPIRED", CodeOf(legacy.RequestReturn(owner, "x", p, created.Add(8*24*time.Hour))))
}

func TestReturnResolution(t *testing.T) {
	p := DefaultPolicy()

	t.Run("approve", func(t *testing.T) {
		o := shippedOrder(t)
		require.NoError(t, o.RequestReturn(owner, "damaged", p, created.Add(3*time.Hour)))
		assert.ErrorIs(t, o.ApproveReturn(owner, created), ErrForbidden)
		require.NoError(t, o.ApproveReturn(admin, created.Add(4*time.Hour)))
		assert.Equal(t, ReturnApproved, o.ReturnStatus)
		assert.Equal(t, OrderReturnApproved, o.Status)
		assert.Equal(t, admin.UserID, o.ReturnApprovedBy)

		assert.ErrorIs(t, o.ApproveReturn(admin, created), ErrConflict)
		assert.ErrorIs(t, o.DenyReturn(admin, created), ErrConflict)

		require.NoError(t, o.MarkReturned(admin, created.Add(100*time.Hour)))
		assert.Equal(t, ReturnReturned, o.ReturnStatus)
		assert.Empty(t, o.ReturnReason)
		assert.ErrorIs(t, o.MarkReturned(admin, created), ErrConflict)
	})

	t.Run("deny", func(t *testing.T) {
		o := shippedOrder(t)
		require.NoError(t, o.RequestReturn(owner, "changed mind", p, created.Add(3*time.Hour)))
		require.NoError(t, o.DenyReturn(admin, created.Add(4*time.Hour)))
		assert.Equal(t, ReturnDenied, o.ReturnStatus)
		assert.Equal(t, OrderShipped, o.Status)
		assert.Empty(t, o.ReturnReason)
		require.NotNil(t, o.ReturnDeniedAt)

		assert.ErrorIs(t, o.DenyReturn(admin, created), ErrConflict)
		assert.ErrorIs(t, o.ApproveReturn(admin, created), ErrConflict)
		assert.ErrorIs(t, o.RequestReturn(owner, "again", p, created.Add(5*time.Hour)), ErrConflict)
	})

	t.Run("cancel request", func(t *testing.T) {
		o := shippedOrder(t)
		assert.ErrorIs(t, o.CancelReturnRequest(owner, created), ErrConflict)
		require.NoError(t, o.RequestReturn(owner, "wrong colour", p, created.Add(3*time.Hour)))
		assert.ErrorIs(t, o.CancelReturnRequest(stranger, created), ErrForbidden)
		require.NoError(t, o.CancelReturnRequest(owner, created.Add(4*time.Hour)))
		assert.Equal(t, ReturnNotRequested, o.ReturnStatus)
		assert.Empty(t, o.ReturnReason)
		assert.Nil(t, o.ReturnRequestedAt)

		require.NoError(t, o.RequestReturn(owner, "second thoughts", p, created.Add(5*time.Hour)))
	})
}

func TestSoftDelete(t *testing.T) {
	shipped := shippedOrder(t)
	err := shipped.SoftDelete(admin, created)
	assert.ErrorIs(t, err, ErrConflict)
	assert.False(t, shipped.IsDeleted)

	o := newTestOrder(t, CashOnDelivery)
	assert.ErrorIs(t, o.SoftDelete(stranger, created), ErrForbidden)
	require.NoError(t, o.SoftDelete(owner, created))
	assert.True(t, o.IsDeleted)

	err = o.SoftDelete(owner, created)
	assert.Equal(t, "ORDER_DELETED", CodeOf(err))
	assert.Equal(t, "ORDER_DELETED", CodeOf(o.Approve(admin, created)))
}

func TestCloneIsDeep(t *testing.T) {
	o := shippedOrder(t)
	c := o.Clone()
	c.Items[0].Quantity = 99
	*c.ShippedAt = c.ShippedAt.Add(time.Hour)
	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.False(t, o.ShippedAt.Equal(*c.ShippedAt))
}

func TestErrorKinds(t *testing.T) {
	err := Conflict("X", "y")
	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "X: y", err.Error())

	wrapped := PaymentIntentFailed(errors.New("dial tcp: timeout"))
	assert.ErrorIs(t, wrapped, ErrPaymentIntentFailed)
	assert.Equal(t, "PAYMENT_INTENT_FAILED", CodeOf(wrapped))
}
