package service

import (
	"context"
	"errors"
	"time"

	"storefront/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const spanPrefix = "service."

var tracer = otel.Tracer("storefront/service")

// Clock is injected so tests can move time across the cancel and return
// windows.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, spanPrefix+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcomeOf(err))
	} else {
		span.SetStatus(codes.Ok, "success")
	}
	span.End()
}

// outcomeOf is the low-cardinality label used for metrics and span status.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrInvalidPaymentSignature):
		return "invalid_signature"
	case errors.Is(err, domain.ErrPaymentIntentFailed):
		return "gateway_error"
	default:
		return "error"
	}
}
