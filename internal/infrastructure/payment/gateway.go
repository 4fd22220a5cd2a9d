package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"storefront/internal/config"

	"github.com/google/uuid"
)

// Gateway creates payment intents at the external processor and reads them
// back. It never mutates local state.
type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error)
	// OrderAmount returns the amount, in minor units, the processor order
	// ref was created for.
	OrderAmount(ctx context.Context, ref string) (int64, error)
}

// NewGateway picks the implementation named by cfg.Gateway.
func NewGateway(cfg config.Payment) (Gateway, error) {
	switch strings.ToLower(cfg.Gateway) {
	case "razorpay":
		return NewRazorpayClient(cfg.BaseURL, cfg.KeyID, cfg.KeySecret, cfg.Timeout), nil
	case "mock":
		return NewMockGateway(), nil
	default:
		return nil, fmt.Errorf("payment: unknown gateway %q", cfg.Gateway)
	}
}

// mockGateway issues processor references in memory. The same receipt always
// yields the same reference.
type mockGateway struct {
	mu      sync.RWMutex
	orders  map[string]string
	amounts map[string]int64
}

func NewMockGateway() Gateway {
	return &mockGateway{orders: make(map[string]string), amounts: make(map[string]int64)}
}

func (g *mockGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if amount <= 0 {
		return "", fmt.Errorf("mock gateway: amount must be positive, got %d", amount)
	}

	g.mu.RLock()
	if ref, ok := g.orders[receipt]; ok {
		g.mu.RUnlock()
		return ref, nil
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()
	if ref, ok := g.orders[receipt]; ok {
		return ref, nil
	}
	ref := "order_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	g.orders[receipt] = ref
	g.amounts[ref] = amount
	return ref, nil
}

func (g *mockGateway) OrderAmount(ctx context.Context, ref string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	amount, ok := g.amounts[ref]
	if !ok {
		return 0, fmt.Errorf("mock gateway: unknown order %q", ref)
	}
	return amount, nil
}
