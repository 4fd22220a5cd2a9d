package service

import (
	"context"
	"database/sql"
	"time"

	"storefront/internal/database"
	"storefront/internal/domain"
	"storefront/internal/infrastructure/events"
	"storefront/internal/infrastructure/payment"
	"storefront/internal/logging"
	"storefront/internal/metrics"
	"storefront/internal/repo"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const publishTimeout = 300 * time.Millisecond

type OrderService interface {
	PlaceCOD(ctx context.Context, userID string, info domain.UserInfo) (*domain.Order, error)
	PlaceOnline(ctx context.Context, in OnlinePlacement) (*domain.Order, error)

	Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Order, error)
	ListForOwner(ctx context.Context, userID string) ([]domain.Order, error)
	ListAll(ctx context.Context, actor domain.Actor) ([]domain.Order, error)

	Approve(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Order, error)
	Ship(ctx context.Context, actor domain.Actor, id uuid.UUID, trackingID string, estimatedDelivery *time.Time) (*domain.Order, error)
	Cancel(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Order, error)
	RequestReturn(ctx context.Context, actor domain.Actor, id uuid.UUID, reason string) (*domain.Order, error)
	CancelReturnRequest(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Order, error)
	ApproveReturn(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Order, error)
	DenyReturn(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Order, error)
	MarkReturned(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Order, error)
	SoftDelete(ctx context.Context, actor domain.Actor, id uuid.UUID) error
}

// OnlinePlacement is a paid checkout relayed by the client. An empty Cart
// means the user's persisted cart is used.
type OnlinePlacement struct {
	UserID  string
	Info    domain.UserInfo
	Payment domain.PaymentConfirmation
	Cart    []domain.Line
}

type OrderServiceDeps struct {
	DB        *sql.DB
	Orders    repo.OrderRepo
	Carts     repo.CartRepo
	Products  repo.ProductRepo
	Verifier  *payment.Verifier
	Gateway   payment.Gateway
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Policy    domain.Policy
	Clock     Clock
}

type orderService struct {
	db        *sql.DB
	orders    repo.OrderRepo
	carts     repo.CartRepo
	products  repo.ProductRepo
	verifier  *payment.Verifier
	gateway   payment.Gateway
	publisher events.Publisher
	metrics   *metrics.Metrics
	policy    domain.Policy
	now       Clock
}

func NewOrderService(deps OrderServiceDeps) OrderService {
	s := &orderService{
		db:        deps.DB,
		orders:    deps.Orders,
		carts:     deps.Carts,
		products:  deps.Products,
		verifier:  deps.Verifier,
		gateway:   deps.Gateway,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		policy:    deps.Policy,
		now:       deps.Clock,
	}
	if s.publisher == nil {
		s.publisher = events.NopPublisher{}
	}
	if s.now == nil {
		s.now = systemClock
	}
	if s.policy == (domain.Policy{}) {
		s.policy = domain.DefaultPolicy()
	}
	return s
}

func (s *orderService) PlaceCOD(ctx context.Context, userID string, info domain.UserInfo) (*domain.Order, error) {
	return s.place(ctx, userID, info, domain.CashOnDelivery, "", 0, nil)
}

func (s *orderService) PlaceOnline(ctx context.Context, in OnlinePlacement) (*domain.Order, error) {
	if !in.Payment.Complete() {
		return nil, domain.Validation("PAYMENT_DETAILS_REQUIRED", "order reference, payment reference and signature are required")
	}
	if !s.verifier.Verify(in.Payment.OrderRef, in.Payment.PaymentRef, in.Payment.Signature) {
		logging.FromContext(ctx).Warn("payment signature rejected",
			zap.String("user_id", in.UserID),
			zap.String("payment_order_ref", in.Payment.OrderRef),
		)
		s.metrics.ObserveTransition(string(domain.OpPlace), outcomeOf(domain.InvalidPaymentSignature()))
		return nil, domain.InvalidPaymentSignature()
	}

	paid, err := s.gateway.OrderAmount(ctx, in.Payment.OrderRef)
	if err != nil {
		logging.FromContext(ctx).Error("payment intent lookup failed",
			zap.String("user_id", in.UserID),
			zap.String("payment_order_ref", in.Payment.OrderRef),
			zap.Error(err),
		)
		s.metrics.ObservePayment("fetch_order", "error")
		return nil, domain.PaymentIntentFailed(err)
	}
	s.metrics.ObservePayment("fetch_order", "success")
	return s.place(ctx, in.UserID, in.Info, domain.OnlinePayment, in.Payment.PaymentRef, paid, in.Cart)
}

// place prices the lines, persists the order and clears the cart, all while
// holding the user's lock. A failed cart clear is logged and the order kept.
// Online orders must total exactly the paid amount.
func (s *orderService) place(ctx context.Context, userID string, info domain.UserInfo, method domain.PaymentMethod, transactionID string, paid int64, lines []domain.Line) (_ *domain.Order, err error) {
	ctx, span := startSpan(ctx, "PlaceOrder",
		attribute.String("use_case", string(domain.OpPlace)),
		attribute.String("order.payment_method", string(method)),
	)
	defer func() {
		s.metrics.ObserveTransition(string(domain.OpPlace), outcomeOf(err))
		endSpan(span, err)
	}()
	logger := logging.FromContext(ctx).With(zap.String("use_case", string(domain.OpPlace)), zap.String("user_id", userID))

	if userID == "" {
		return nil, domain.Unauthorized("user id is required")
	}
	if !info.Complete() {
		return nil, domain.Validation("INCOMPLETE_INFO", "name, address and phone are required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := database.LockUser(ctx, tx, userID); err != nil {
		return nil, err
	}

	if len(lines) == 0 {
		cart, err := s.carts.ListByUser(ctx, tx, userID)
		if err != nil {
			return nil, err
		}
		lines = domain.LinesFromCart(cart)
	}
	if len(lines) == 0 {
		return nil, domain.Validation("EMPTY_CART", "cart is empty")
	}

	catalog, err := s.products.FindByIds(ctx, tx, productIDs(lines))
	if err != nil {
		return nil, err
	}
	items, _, err := domain.PriceLines(lines, catalog)
	if err != nil {
		return nil, err
	}

	now := s.now()
	order, err := domain.NewOrder(uuid.New(), userID, info, method, transactionID, items, now)
	if err != nil {
		return nil, err
	}
	if method == domain.OnlinePayment && order.TotalAmount != paid {
		logger.Warn("payment amount does not match order total",
			zap.Int64("paid_amount", paid),
			zap.Int64("total_amount", order.TotalAmount),
		)
		return nil, domain.Validation("PAYMENT_AMOUNT_MISMATCH", "paid amount does not match the order total")
	}
	if err := s.orders.CreateOrder(ctx, tx, order); err != nil {
		return nil, err
	}

	clearErr := database.Savepoint(ctx, tx, "clear_cart", func() error {
		_, err := s.carts.DeleteAllByUser(ctx, tx, userID)
		return err
	})
	if clearErr != nil {
		logger.Warn("cart clear failed, order kept", zap.String("order_id", order.ID.String()), zap.Error(clearErr))
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("order.id", order.ID.String()))
	logger.Info("order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("payment_method", string(method)),
		zap.Int64("total_amount", order.TotalAmount),
	)
	s.publish(ctx, domain.OpPlace, order, userID, now)
	return order, nil
}

func (s *orderService) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Order, error) {
	order, err := s.orders.FindById(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin {
		return order, nil
	}
	if !order.OwnedBy(actor.UserID) {
		return nil, domain.Forbidden("NOT_ORDER_OWNER", "order belongs to another user")
	}
	if order.IsDeleted {
		return nil, domain.NotFound("ORDER_NOT_FOUND", "order not found")
	}
	return order, nil
}

func (s *orderService) ListForOwner(ctx context.Context, userID string) ([]domain.Order, error) {
	if userID == "" {
		return nil, domain.Unauthorized("user id is required")
	}
	return s.orders.FindByUser(ctx, userID)
}

func (s *orderService) ListAll(ctx context.Context, actor domain.Actor) ([]domain.Order, error) {
	if !actor.IsAdmin {
		return nil, domain.Forbidden("ADMIN_REQUIRED", "admin role required")
	}
	return s.orders.FindAll(ctx)
}

func (s *orderService) Approve(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Order, error) {
	return s.transition(ctx, domain.OpApprove, actor, id, func(o *domain.Order, now time.Time) error {
		return o.Approve(actor, now)
	})
}

func (s *orderService) Ship(ctx context.Context, actor domain.Actor, id uuid.UUID, trackingID string, estimatedDelivery *time.Time) (*domain.Order, error) {
	return s.transition(ctx, domain.OpShip, actor, id, func(o *domain.Order, now time.Time) error {
		return o.Ship(actor, trackingID, estimatedDelivery, now)
	})
}

func (s *orderService) Cancel(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Order, error) {
	return s.transition(ctx, domain.OpCancel, actor, id, func(o *domain.Order, now time.Time) error {
		return o.Cancel(actor, s.policy, now)
	})
}

func (s *orderService) RequestReturn(ctx context.Context, actor domain.Actor, id uuid.UUID, reason string) (*domain.Order, error) {
	return s.transition(ctx, domain.OpRequestReturn, actor, id, func(o *domain.Order, now time.Time) error {
		return o.RequestReturn(actor, reason, s.policy, now)
	})
}

func (s *orderService) CancelReturnRequest(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Order, error) {
	return s.transition(ctx, domain.OpCancelReturnRequest, actor, id, func(o *domain.Order, now time.Time) error {
		return o.CancelReturnRequest(actor, now)
	})
}

func (s *orderService) ApproveReturn(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Order, error) {
	return s.transition(ctx, domain.OpApproveReturn, actor, id, func(o *domain.Order, now time.Time) error {
		return o.ApproveReturn(actor, now)
	})
}

func (s *orderService) DenyReturn(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Order, error) {
	return s.transition(ctx, domain.OpDenyReturn, actor, id, func(o *domain.Order, now time.Time) error {
		return o.DenyReturn(actor, now)
	})
}

func (s *orderService) MarkReturned(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Order, error) {
	return s.transition(ctx, domain.OpMarkReturned, actor, id, func(o *domain.Order, now time.Time) error {
		return o.MarkReturned(actor, now)
	})
}

func (s *orderService) SoftDelete(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	_, err := s.transition(ctx, domain.OpSoftDelete, actor, id, func(o *domain.Order, now time.Time) error {
		return o.SoftDelete(actor, now)
	})
	return err
}

// transition loads the order, applies op to a copy and writes it back only if
// the stored status pair is still the one that was read.
func (s *orderService) transition(ctx context.Context, op domain.Operation, actor domain.Actor, id uuid.UUID, apply func(*domain.Order, time.Time) error) (_ *domain.Order, err error) {
	ctx, span := startSpan(ctx, "Transition",
		attribute.String("use_case", string(op)),
		attribute.String("order.id", id.String()),
		attribute.Bool("actor.admin", actor.IsAdmin),
	)
	defer func() {
		s.metrics.ObserveTransition(string(op), outcomeOf(err))
		endSpan(span, err)
	}()
	logger := logging.FromContext(ctx).With(
		zap.String("use_case", string(op)),
		zap.String("order_id", id.String()),
		zap.String("actor", actor.UserID),
	)

	if actor.UserID == "" {
		return nil, domain.Unauthorized("user id is required")
	}

	current, err := s.orders.FindById(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	next := current.Clone()
	if err := apply(next, now); err != nil {
		logger.Info("order transition rejected", zap.String("code", domain.CodeOf(err)), zap.String("status", string(current.Status)))
		return nil, err
	}
	if err := s.orders.UpdateTransition(ctx, next, current.Status, current.ReturnStatus); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("order.status", string(next.Status)),
		attribute.String("order.return_status", string(next.ReturnStatus)),
	)
	logger.Info("order transitioned",
		zap.String("from_status", string(current.Status)),
		zap.String("to_status", string(next.Status)),
		zap.String("return_status", string(next.ReturnStatus)),
	)
	s.publish(ctx, op, next, actor.UserID, now)
	return next, nil
}

// publish is best effort: the order is already committed.
func (s *orderService) publish(ctx context.Context, op domain.Operation, order *domain.Order, actor string, at time.Time) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pctx, events.FromOrder(op, order, actor, at)); err != nil {
		logging.FromContext(ctx).Warn("order event not published",
			zap.String("order_id", order.ID.String()),
			zap.String("operation", string(op)),
			zap.Error(err),
		)
	}
}

func productIDs(lines []domain.Line) []string {
	seen := make(map[string]struct{}, len(lines))
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}
	return ids
}
