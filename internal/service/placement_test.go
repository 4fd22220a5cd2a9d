package service

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"
	"testing"

	"storefront/internal/database/dbtest"
	"storefront/internal/domain"
	"storefront/internal/infrastructure/payment"
	"storefront/internal/repo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDB *sql.DB

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}
	db, stop, err := dbtest.Start(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "service tests: %v\n", err)
		os.Exit(m.Run())
	}
	testDB = db
	code := m.Run()
	stop()
	os.Exit(code)
}

type stack struct {
	db      *sql.DB
	orders  OrderService
	carts   CartService
	repo    repo.OrderRepo
	clock   *fakeClock
	pub     *recordingPublisher
	gateway payment.Gateway
}

func newStack(t *testing.T) *stack {
	t.Helper()
	if testDB == nil {
		t.Skip("postgres unavailable")
	}
	dbtest.Reset(t, testDB)
	dbtest.SeedProduct(t, testDB, "p1", "Tee", 500, 50)
	dbtest.SeedProduct(t, testDB, "p2", "Cap", 300, 0)

	clock := &fakeClock{now: t0}
	pub := &recordingPublisher{}
	orders := repo.NewOrderRepo(testDB)
	carts := repo.NewCartRepo(testDB)
	products := repo.NewProductRepo(testDB)
	gateway := payment.NewMockGateway()

	orderSvc := NewOrderService(OrderServiceDeps{
		DB:        testDB,
		Orders:    orders,
		Carts:     carts,
		Products:  products,
		Verifier:  paymentVerifier(),
		Gateway:   gateway,
		Publisher: pub,
		Clock:     clock.Now,
	})
	return &stack{
		db:      testDB,
		orders:  orderSvc,
		carts:   NewCartService(testDB, carts, products, clock.Now),
		repo:    orders,
		clock:   clock,
		pub:     pub,
		gateway: gateway,
	}
}

var delivery = domain.UserInfo{Name: "Asha", Address: "12 MG Road", Phone: "9999999999"}

func TestPlaceCODPricesCartAndEmptiesIt(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	_, err := s.carts.AddItem(ctx, "u1", "p1", "M", 1)
	require.NoError(t, err)
	entry, err := s.carts.AddItem(ctx, "u1", "p1", "M", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, entry.Quantity)

	order, err := s.orders.PlaceCOD(ctx, "u1", delivery)
	require.NoError(t, err)
	assert.Equal(t, int64(900), order.TotalAmount)
	assert.Equal(t, domain.PaymentPending, order.PaymentStatus)
	assert.Empty(t, order.TransactionID)

	cart, err := s.carts.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, cart)

	stored, err := s.repo.FindById(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.Items, stored.Items)
	total, err := domain.TotalOf(stored.Items)
	require.NoError(t, err)
	assert.Equal(t, total, stored.TotalAmount)

	require.Len(t, s.pub.events, 1)
	assert.Equal(t, order.ID.String(), s.pub.events[0].OrderID)
}

func TestPlaceCODValidation(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	_, err := s.orders.PlaceCOD(ctx, "u1", domain.UserInfo{Name: "Asha"})
	assert.Equal(t, "INCOMPLETE_INFO", domain.CodeOf(err))

	_, err = s.orders.PlaceCOD(ctx, "u1", delivery)
	assert.Equal(t, "EMPTY_CART", domain.CodeOf(err))

	_, err = s.carts.AddItem(ctx, "u1", "nope", "", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// paidConfirmation creates a processor order for amount and signs it the way
// the checkout would after the customer paid.
func paidConfirmation(t *testing.T, s *stack, amount int64, paymentRef string) domain.PaymentConfirmation {
	t.Helper()
	ref, err := s.gateway.CreateOrder(context.Background(), amount, "INR", "rcpt_"+paymentRef)
	require.NoError(t, err)
	return domain.PaymentConfirmation{
		OrderRef:   ref,
		PaymentRef: paymentRef,
		Signature:  paymentVerifier().Sign(ref, paymentRef),
	}
}

func TestPlaceOnlineUsesCatalogPrices(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	_, err := s.carts.AddItem(ctx, "u1", "p2", "", 5)
	require.NoError(t, err)

	confirmation := paidConfirmation(t, s, 1350, "pay_A")
	order, err := s.orders.PlaceOnline(ctx, OnlinePlacement{
		UserID:  "u1",
		Info:    delivery,
		Payment: confirmation,
		Cart:    []domain.Line{{ProductID: "p1", Size: "L", Quantity: 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, order.PaymentStatus)
	assert.Equal(t, "pay_A", order.TransactionID)
	assert.Equal(t, int64(1350), order.TotalAmount)

	// the persisted cart is cleared even though the client sent its own lines
	cart, err := s.carts.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, cart)

	_, err = s.orders.PlaceOnline(ctx, OnlinePlacement{
		UserID:  "u1",
		Info:    delivery,
		Payment: confirmation,
		Cart:    []domain.Line{{ProductID: "p1", Quantity: 3}},
	})
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, "DUPLICATE_PAYMENT", domain.CodeOf(err))
}

func TestPlaceOnlineRequiresThePaidAmount(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	_, err := s.carts.AddItem(ctx, "u1", "p1", "M", 3)
	require.NoError(t, err)

	// a verified ₹1 intent cannot settle a ₹13.50 cart
	_, err = s.orders.PlaceOnline(ctx, OnlinePlacement{
		UserID:  "u1",
		Info:    delivery,
		Payment: paidConfirmation(t, s, 100, "pay_small"),
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, "PAYMENT_AMOUNT_MISMATCH", domain.CodeOf(err))

	unknown := domain.PaymentConfirmation{OrderRef: "order_forged", PaymentRef: "pay_x", Signature: paymentVerifier().Sign("order_forged", "pay_x")}
	_, err = s.orders.PlaceOnline(ctx, OnlinePlacement{UserID: "u1", Info: delivery, Payment: unknown})
	assert.ErrorIs(t, err, domain.ErrPaymentIntentFailed)

	orders, err := s.orders.ListForOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, orders)
	cart, err := s.carts.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, cart, 1)
	assert.Empty(t, s.pub.events)
}

func TestConcurrentPlacementsDoNotDoubleSpendTheCart(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	_, err := s.carts.AddItem(ctx, "u1", "p1", "M", 2)
	require.NoError(t, err)

	const n = 4
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		placed  int
		empties int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.orders.PlaceCOD(ctx, "u1", delivery)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				placed++
			case domain.CodeOf(err) == "EMPTY_CART":
				empties++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, placed)
	assert.Equal(t, n-1, empties)
}

func TestCartServiceMutations(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	_, err := s.carts.AddItem(ctx, "u1", "p1", "M", 0)
	assert.Equal(t, "INVALID_QUANTITY", domain.CodeOf(err))

	_, err = s.carts.AddItem(ctx, "u1", "p1", "M", 1<<40)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, "INVALID_QUANTITY", domain.CodeOf(err))

	_, err = s.carts.AddItem(ctx, "u1", "p1", "M", 1)
	require.NoError(t, err)

	_, err = s.carts.AddItem(ctx, "u1", "p1", "M", domain.MaxLineQuantity)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = s.carts.UpdateQuantity(ctx, "u1", "p1", "M", domain.MaxLineQuantity+1)
	assert.Equal(t, "INVALID_QUANTITY", domain.CodeOf(err))

	updated, err := s.carts.UpdateQuantity(ctx, "u1", "p1", "M", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Quantity)
	assert.Equal(t, int64(500), updated.Price)

	_, err = s.carts.UpdateQuantity(ctx, "u1", "p1", "S", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.carts.RemoveItem(ctx, "u1", "p1", "M"))
	err = s.carts.RemoveItem(ctx, "u1", "p1", "M")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = s.carts.List(ctx, "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestTransitionsAgainstPostgres(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	_, err := s.carts.AddItem(ctx, "u1", "p1", "M", 1)
	require.NoError(t, err)
	order, err := s.orders.PlaceCOD(ctx, "u1", delivery)
	require.NoError(t, err)

	const n = 5
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.orders.Approve(ctx, admin, order.ID); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, successes)

	_, err = s.orders.Ship(ctx, admin, order.ID, "TRK", nil)
	require.NoError(t, err)
	err = s.orders.SoftDelete(ctx, owner, order.ID)
	assert.Equal(t, "ORDER_IN_TRANSIT", domain.CodeOf(err))
}
