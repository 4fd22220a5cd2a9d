package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGateway struct {
	ref    string
	err    error
	amount int64
	block  bool
}

func (g *stubGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error) {
	g.amount = amount
	if g.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return g.ref, g.err
}

func (g *stubGateway) OrderAmount(ctx context.Context, ref string) (int64, error) {
	return g.amount, g.err
}

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		code string
	}{
		{in: "10", want: 1000},
		{in: "899.5", want: 89950},
		{in: "0.01", want: 1},
		{in: "92233720368547758.07", want: math.MaxInt64},
		{in: "0", code: "INVALID_AMOUNT"},
		{in: "-5", code: "INVALID_AMOUNT"},
		{in: "1.005", code: "INVALID_AMOUNT"},
		// × 100 these land just past int64 and would wrap to 1 and MinInt64
		{in: "184467440737095516.17", code: "AMOUNT_OUT_OF_RANGE"},
		{in: "92233720368547758.08", code: "AMOUNT_OUT_OF_RANGE"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ToMinorUnits(decimal.RequireFromString(tt.in))
			if tt.code != "" {
				assert.ErrorIs(t, err, domain.ErrValidation)
				assert.Equal(t, tt.code, domain.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCreateIntent(t *testing.T) {
	m := metrics.New("test")
	gw := &stubGateway{ref: "order_123"}
	svc := NewPaymentService(gw, "INR", time.Second, m)

	intent, err := svc.CreateIntent(context.Background(), "u1", decimal.RequireFromString("10"))
	require.NoError(t, err)
	assert.Equal(t, "order_123", intent.OrderRef)
	assert.Equal(t, int64(1000), gw.amount)
	assert.Equal(t, "INR", intent.Currency)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PaymentRequests.WithLabelValues("create_order", "success")))
}

func TestCreateIntentFailures(t *testing.T) {
	_, err := NewPaymentService(&stubGateway{err: errors.New("connection reset")}, "INR", time.Second, nil).
		CreateIntent(context.Background(), "u1", decimal.NewFromInt(5))
	assert.ErrorIs(t, err, domain.ErrPaymentIntentFailed)
	assert.Equal(t, "PAYMENT_INTENT_FAILED", domain.CodeOf(err))

	start := time.Now()
	_, err = NewPaymentService(&stubGateway{block: true}, "INR", 50*time.Millisecond, nil).
		CreateIntent(context.Background(), "u1", decimal.NewFromInt(5))
	assert.ErrorIs(t, err, domain.ErrPaymentIntentFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	_, err = NewPaymentService(&stubGateway{}, "INR", time.Second, nil).
		CreateIntent(context.Background(), "", decimal.NewFromInt(5))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
