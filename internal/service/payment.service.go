package service

import (
	"context"
	"math"
	"time"

	"storefront/internal/domain"
	"storefront/internal/infrastructure/payment"
	"storefront/internal/logging"
	"storefront/internal/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var (
	// minorUnitsPerMajor converts rupees to paise.
	minorUnitsPerMajor = decimal.NewFromInt(100)
	maxMinorUnits      = decimal.NewFromInt(math.MaxInt64)
)

// Intent is the processor-side order the client pays against.
type Intent struct {
	OrderRef string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type PaymentService interface {
	// CreateIntent takes the amount in major units.
	CreateIntent(ctx context.Context, userID string, amount decimal.Decimal) (*Intent, error)
}

type paymentService struct {
	gateway  payment.Gateway
	currency string
	timeout  time.Duration
	metrics  *metrics.Metrics
}

func NewPaymentService(gateway payment.Gateway, currency string, timeout time.Duration, m *metrics.Metrics) PaymentService {
	return &paymentService{gateway: gateway, currency: currency, timeout: timeout, metrics: m}
}

// ToMinorUnits returns amount × 100, which must be a positive whole number.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	minor := amount.Mul(minorUnitsPerMajor)
	if !minor.IsPositive() {
		return 0, domain.Validation("INVALID_AMOUNT", "amount must be positive")
	}
	if !minor.Equal(minor.Truncate(0)) {
		return 0, domain.Validation("INVALID_AMOUNT", "amount has more precision than the currency allows")
	}
	if minor.GreaterThan(maxMinorUnits) {
		return 0, domain.Validation("AMOUNT_OUT_OF_RANGE", "amount is out of range")
	}
	return minor.IntPart(), nil
}

func (s *paymentService) CreateIntent(ctx context.Context, userID string, amount decimal.Decimal) (_ *Intent, err error) {
	ctx, span := startSpan(ctx, "CreatePaymentIntent", attribute.String("use_case", "create_payment_intent"))
	defer func() { endSpan(span, err) }()

	if userID == "" {
		return nil, domain.Unauthorized("user id is required")
	}
	minor, err := ToMinorUnits(amount)
	if err != nil {
		return nil, err
	}

	receipt := "rcpt_" + uuid.NewString()[:18]
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	ref, err := s.gateway.CreateOrder(ctx, minor, s.currency, receipt)
	if err != nil {
		s.metrics.ObservePayment("create_order", "error")
		logging.FromContext(ctx).Error("payment intent failed",
			zap.String("user_id", userID),
			zap.Int64("amount", minor),
			zap.Error(err),
		)
		return nil, domain.PaymentIntentFailed(err)
	}
	s.metrics.ObservePayment("create_order", "success")

	span.SetAttributes(attribute.String("payment.order_ref", ref))
	logging.FromContext(ctx).Info("payment intent created",
		zap.String("user_id", userID),
		zap.String("payment_order_ref", ref),
		zap.Int64("amount", minor),
	)
	return &Intent{OrderRef: ref, Amount: minor, Currency: s.currency, Receipt: receipt}, nil
}
