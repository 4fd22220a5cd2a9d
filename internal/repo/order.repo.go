package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"storefront/internal/database"
	"storefront/internal/domain"

	"github.com/google/uuid"
)

type OrderRepo interface {
	CreateOrder(ctx context.Context, tx *sql.Tx, order *domain.Order) error
	FindById(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	FindByUser(ctx context.Context, userID string) ([]domain.Order, error)
	FindAll(ctx context.Context) ([]domain.Order, error)
	// UpdateTransition writes the mutable fields of order only if the stored
	// row still has the expected status and return status.
	UpdateTransition(ctx context.Context, order *domain.Order, expectStatus domain.OrderStatus, expectReturn domain.ReturnStatus) error
}

type orderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) OrderRepo {
	return &orderRepo{db: db}
}

const transactionIDIndex = "orders_transaction_id_key"

const orderColumns = `
	id, user_id, delivery_name, delivery_address, delivery_phone,
	payment_method, payment_status, COALESCE(transaction_id, ''),
	items, total_amount, status, return_status,
	COALESCE(tracking_id, ''), estimated_delivery, COALESCE(return_reason, ''),
	is_deleted, created_at, updated_at, shipped_at,
	COALESCE(cancelled_by, ''), cancelled_at, return_requested_at,
	COALESCE(return_approved_by, ''), return_approved_at,
	COALESCE(return_denied_by, ''), return_denied_at, returned_at`

func (r *orderRepo) CreateOrder(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("encode order items: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, user_id, delivery_name, delivery_address, delivery_phone,
			payment_method, payment_status, transaction_id, items, total_amount,
			status, return_status, is_deleted, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		order.ID, order.UserID, order.Delivery.Name, order.Delivery.Address, order.Delivery.Phone,
		order.PaymentMethod, order.PaymentStatus, nullString(order.TransactionID), string(items), order.TotalAmount,
		order.Status, order.ReturnStatus, order.IsDeleted, order.CreatedAt, order.UpdatedAt,
	)
	if database.IsUniqueViolation(err, transactionIDIndex) {
		return domain.Conflict("DUPLICATE_PAYMENT", "an order already exists for this payment")
	}
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *orderRepo) FindById(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("ORDER_NOT_FOUND", "order not found")
	}
	if err != nil {
		return nil, fmt.Errorf("find order %s: %w", id, err)
	}
	return order, nil
}

func (r *orderRepo) FindByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return r.list(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 AND is_deleted = false ORDER BY created_at DESC, id",
		userID,
	)
}

func (r *orderRepo) FindAll(ctx context.Context) ([]domain.Order, error) {
	return r.list(ctx, "SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC, id")
}

func (r *orderRepo) UpdateTransition(ctx context.Context, order *domain.Order, expectStatus domain.OrderStatus, expectReturn domain.ReturnStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET
			status = $4,
			return_status = $5,
			payment_status = $6,
			tracking_id = $7,
			estimated_delivery = $8,
			return_reason = $9,
			is_deleted = $10,
			updated_at = $11,
			shipped_at = $12,
			cancelled_by = $13,
			cancelled_at = $14,
			return_requested_at = $15,
			return_approved_by = $16,
			return_approved_at = $17,
			return_denied_by = $18,
			return_denied_at = $19,
			returned_at = $20
		WHERE id = $1 AND status = $2 AND return_status = $3 AND is_deleted = false`,
		order.ID, expectStatus, expectReturn,
		order.Status, order.ReturnStatus, order.PaymentStatus,
		nullString(order.TrackingID), order.EstimatedDelivery, nullString(order.ReturnReason),
		order.IsDeleted, order.UpdatedAt, order.ShippedAt,
		nullString(order.CancelledBy), order.CancelledAt, order.ReturnRequestedAt,
		nullString(order.ReturnApprovedBy), order.ReturnApprovedAt,
		nullString(order.ReturnDeniedBy), order.ReturnDeniedAt, order.ReturnedAt,
	)
	if err != nil {
		return fmt.Errorf("update order %s: %w", order.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order %s: %w", order.ID, err)
	}
	if n == 0 {
		return domain.Conflict("CONCURRENT_MODIFICATION", "order was modified by another request")
	}
	return nil
}

func (r *orderRepo) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o     domain.Order
		items []byte
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.Delivery.Name, &o.Delivery.Address, &o.Delivery.Phone,
		&o.PaymentMethod, &o.PaymentStatus, &o.TransactionID,
		&items, &o.TotalAmount, &o.Status, &o.ReturnStatus,
		&o.TrackingID, &o.EstimatedDelivery, &o.ReturnReason,
		&o.IsDeleted, &o.CreatedAt, &o.UpdatedAt, &o.ShippedAt,
		&o.CancelledBy, &o.CancelledAt, &o.ReturnRequestedAt,
		&o.ReturnApprovedBy, &o.ReturnApprovedAt,
		&o.ReturnDeniedBy, &o.ReturnDeniedAt, &o.ReturnedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode order items: %w", err)
	}
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return &o, nil
}
